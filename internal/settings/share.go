package settings

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// LinkScheme prefixes share links produced by Link.
const LinkScheme = "cornerbox:"

// Link encodes the text, number and color fields of s as a share link.
// The head image is not part of the link.
func Link(s Settings) string {
	v := url.Values{}
	v.Set(string(FieldTitle), s.Title)
	v.Set(string(FieldIssue), strconv.Itoa(s.Issue))
	v.Set(string(FieldPrice), s.Price)
	v.Set(string(FieldPublisher), s.Publisher)
	v.Set(string(FieldStyle), string(s.Style))
	v.Set(string(FieldOutline), strconv.FormatFloat(s.Outline, 'f', -1, 64))
	v.Set(string(FieldBG), s.BG)
	v.Set(string(FieldAccent), s.Accent)
	v.Set(string(FieldTextColor), s.TextColor)
	return LinkScheme + "?" + v.Encode()
}

// ApplyLink feeds every known field of a share link through store.Set.
// Unknown keys are ignored.
func ApplyLink(store *Store, link string) error {
	if !strings.HasPrefix(link, LinkScheme) {
		return fmt.Errorf("not a share link: %q", link)
	}
	query := strings.TrimPrefix(strings.TrimPrefix(link, LinkScheme), "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		return fmt.Errorf("parse share link: %w", err)
	}
	for _, f := range Fields {
		if raw, ok := values[string(f)]; ok && len(raw) > 0 {
			if _, err := store.Set(f, raw[0]); err != nil {
				return err
			}
		}
	}
	return nil
}
