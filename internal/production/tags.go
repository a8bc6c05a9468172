package production

import (
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultTagColor is used when a tag is created without a colour.
const DefaultTagColor = "#808080"

// Tags returns the tag registry in creation order.
func (s *State) Tags() []Tag {
	return append(make([]Tag, 0, len(s.tags)), s.tags...)
}

// UpsertTag creates a tag when id is empty or unknown, otherwise replaces name and colour.
func (s *State) UpsertTag(id, rawName, rawColor string) (Tag, error) {
	name := strings.TrimSpace(rawName)
	if name == "" {
		return Tag{}, newError(opUpsertTag, reasonEmptyName, ErrInvalidInput)
	}
	color, err := normalizeColor(rawColor)
	if err != nil {
		return Tag{}, newError(opUpsertTag, reasonInvalidColor, err)
	}

	id = strings.TrimSpace(id)
	if id != "" {
		for index := range s.tags {
			if s.tags[index].ID == id {
				s.tags[index].Name = name
				s.tags[index].Color = color
				return s.tags[index], nil
			}
		}
	} else {
		generated, err := s.newID(opUpsertTag)
		if err != nil {
			return Tag{}, err
		}
		id = generated
	}

	tag := Tag{ID: id, Name: name, Color: color}
	s.tags = append(s.tags, tag)
	return tag, nil
}

// DeleteTag removes a tag from the registry. Notes keep referencing the id.
func (s *State) DeleteTag(id string) error {
	for index := range s.tags {
		if s.tags[index].ID == id {
			s.tags = append(s.tags[:index], s.tags[index+1:]...)
			return nil
		}
	}
	return newError(opDeleteTag, reasonTagNotFound, ErrNotFound)
}

// normalizeColor accepts #rgb or #rrggbb and returns lowercase #rrggbb.
func normalizeColor(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultTagColor, nil
	}
	if !strings.HasPrefix(trimmed, "#") {
		trimmed = "#" + trimmed
	}
	parsed, err := colorful.Hex(trimmed)
	if err != nil {
		return "", ErrInvalidInput
	}
	return parsed.Hex(), nil
}
