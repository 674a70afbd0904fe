package airgap

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ExtractImages returns every scalar "image:" value found in a rendered,
// possibly multi-document, YAML stream, in document order.
func ExtractImages(rendered []byte) ([]string, error) {
	dec := yaml.NewDecoder(bytes.NewReader(rendered))
	var images []string
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode rendered manifests: %w", err)
		}
		images = collectImages(&doc, images)
	}
	return images, nil
}

func collectImages(n *yaml.Node, images []string) []string {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			images = collectImages(c, images)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			if key.Value == "image" && value.Kind == yaml.ScalarNode && value.Value != "" {
				images = append(images, value.Value)
				continue
			}
			images = collectImages(value, images)
		}
	}
	return images
}
