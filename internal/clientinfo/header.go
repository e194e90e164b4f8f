// Package clientinfo parses the Food-Client request header that mobile
// and web builds attach to cart requests, and enforces the minimum
// supported app version.
package clientinfo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"

	"kitchencart/internal/model"
)

// Header is the structured client-identification header.
const Header = "Food-Client"

// Info describes the calling client build.
// All fields are optional; web clients often send none.
type Info struct {
	// Version is the app build version, e.g. "2.3.1".
	Version string
	// Platform is "android", "ios" or "web".
	Platform string
	// Source is the surface that originated the request, mapped to
	// model.MutationSource when valid.
	Source model.MutationSource
}

// ParseHeader extracts client info from a Food-Client header value.
// Format (RFC 8941 Dictionary):
//
//	version="2.3.1", source="MENU", platform="android"
//
// Unknown keys are ignored. An unknown source value is dropped rather
// than rejected, so new app surfaces don't break older servers.
// Returns an error if the header is present but malformed.
func ParseHeader(header string) (Info, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Info{}, errors.New("empty Food-Client header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return Info{}, fmt.Errorf("invalid Food-Client header: %w", err)
	}

	info := Info{
		Version:  dictString(dict, "version"),
		Platform: dictString(dict, "platform"),
	}
	switch src := model.MutationSource(dictString(dict, "source")); src {
	case model.SourceItemList, model.SourceMenu, model.SourceSuggestion:
		info.Source = src
	}
	return info, nil
}

// dictString returns the string value of a dictionary key, or "".
func dictString(dict *httpsfv.Dictionary, key string) string {
	member, ok := dict.Get(key)
	if !ok {
		return ""
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return ""
	}
	s, _ := item.Value.(string)
	return s
}
