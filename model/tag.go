package model

import (
	"strings"
)

// Tag represents a parsed `dal` struct tag.
type Tag struct {
	Column     string
	PrimaryKey bool
	AutoInc    bool
	Encrypt    bool
	OmitEmpty  bool
	Ignore     bool
}

// ParseTag parses a `dal` tag string.
//
// Options are separated by spaces, commas or semicolons:
//
//	`dal:"column:code encrypt"`
//	`dal:"pk,auto"`
//	`dal:"-"`
func ParseTag(tagStr string) *Tag {
	tag := &Tag{}
	tagStr = strings.TrimSpace(tagStr)
	if tagStr == "" {
		return tag
	}
	if tagStr == "-" {
		tag.Ignore = true
		return tag
	}

	parts := strings.FieldsFunc(tagStr, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';'
	})

	for _, part := range parts {
		kv := strings.SplitN(part, ":", 2)
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		var val string
		if len(kv) > 1 {
			val = strings.TrimSpace(kv[1])
		}

		switch key {
		case "column":
			tag.Column = val
		case "pk":
			tag.PrimaryKey = true
		case "auto":
			tag.AutoInc = true
		case "encrypt", "encrypted":
			tag.Encrypt = true
		case "omitempty":
			tag.OmitEmpty = true
		}
	}
	return tag
}
