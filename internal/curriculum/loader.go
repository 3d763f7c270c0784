// Package curriculum holds the static topic graph: topics with weight,
// difficulty, prerequisite edges and learning objectives.
package curriculum

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load walks rootDir for topic YAML files and builds a validated graph.
// Assessment and example YAML files are skipped.
func Load(rootDir string) (*Graph, error) {
	var topics []Topic

	err := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isTopicFile(path) {
			return nil
		}
		topic, ok, err := loadTopic(path)
		if err != nil {
			return err
		}
		if ok {
			topics = append(topics, topic)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	g, err := NewGraph(topics)
	if err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	slog.Info("curriculum loaded", "topics", len(topics), "root", rootDir)
	return g, nil
}

func isTopicFile(path string) bool {
	if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
		return false
	}
	return !strings.HasSuffix(path, ".assessments.yaml") && !strings.HasSuffix(path, ".examples.yaml")
}

func loadTopic(path string) (Topic, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Topic{}, false, err
	}

	var f topicFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		slog.Warn("skipping invalid topic YAML", "path", path, "error", err)
		return Topic{}, false, nil
	}
	if f.ID == "" {
		return Topic{}, false, nil // not a topic file
	}

	topic, err := f.toTopic()
	if err != nil {
		return Topic{}, false, fmt.Errorf("%s: %w", path, err)
	}
	return topic, true, nil
}
