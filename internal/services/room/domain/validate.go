package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "github.com/lowrenn/inkroom/internal/errors"
)

const (
	maxTitleRunes   = 100
	maxDescRunes    = 400
	maxContentRunes = 10000
	maxNameRunes    = 30
)

// MsgType values accepted for message documents.
const (
	MsgTypeNarrator = "narrator"
	MsgTypeChara    = "chara"
	MsgTypeOOC      = "ooc"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-f]{6}$`)

// collectionPattern matches the lowercase-alpha collection tokens the
// boundary accepts.
var collectionPattern = regexp.MustCompile(`^[a-z]+$`)

// ValidCollectionToken reports whether name is an acceptable collection token.
func ValidCollectionToken(name string) bool {
	return collectionPattern.MatchString(name)
}

// ValidateFields checks raw input against the field shape of the named
// collection and returns the validated field mapping. Unrecognized
// collections and malformed fields fail with BAD_INPUT.
func ValidateFields(collection string, raw map[string]any) (map[string]any, error) {
	switch collection {
	case CollectionMeta:
		return validateMeta(raw)
	case CollectionMsgs:
		return validateMsg(raw)
	case CollectionCharas:
		return validateChara(raw)
	default:
		return nil, apperrors.New(apperrors.CodeBadInput, fmt.Sprintf("unrecognized collection %q", collection))
	}
}

func validateMeta(raw map[string]any) (map[string]any, error) {
	title, err := requiredString(raw, "title", maxTitleRunes)
	if err != nil {
		return nil, err
	}
	desc, err := optionalString(raw, "desc", maxDescRunes)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{"title": title}
	if desc != "" {
		fields["desc"] = desc
	}
	return fields, nil
}

func validateMsg(raw map[string]any) (map[string]any, error) {
	msgType, err := requiredString(raw, "type", 16)
	if err != nil {
		return nil, err
	}
	switch msgType {
	case MsgTypeNarrator, MsgTypeChara, MsgTypeOOC:
	default:
		return nil, apperrors.New(apperrors.CodeBadInput, fmt.Sprintf("unknown message type %q", msgType))
	}

	content, err := requiredString(raw, "content", maxContentRunes)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"type": msgType, "content": content}

	charaID, err := optionalString(raw, "charaId", 64)
	if err != nil {
		return nil, err
	}
	if msgType == MsgTypeChara && charaID == "" {
		return nil, apperrors.New(apperrors.CodeBadInput, "charaId is required for chara messages")
	}
	if msgType != MsgTypeChara && charaID != "" {
		return nil, apperrors.New(apperrors.CodeBadInput, "charaId is only allowed on chara messages")
	}
	if charaID != "" {
		fields["charaId"] = charaID
	}

	challenge, err := optionalString(raw, "challenge", 128)
	if err != nil {
		return nil, err
	}
	if challenge != "" {
		fields["challenge"] = challenge
	}

	return fields, nil
}

func validateChara(raw map[string]any) (map[string]any, error) {
	name, err := requiredString(raw, "name", maxNameRunes)
	if err != nil {
		return nil, err
	}
	color, err := requiredString(raw, "color", 7)
	if err != nil {
		return nil, err
	}
	color = strings.ToLower(color)
	if !colorPattern.MatchString(color) {
		return nil, apperrors.New(apperrors.CodeBadInput, "color must be a #rrggbb value")
	}

	fields := map[string]any{"name": name, "color": color}

	challenge, err := optionalString(raw, "challenge", 128)
	if err != nil {
		return nil, err
	}
	if challenge != "" {
		fields["challenge"] = challenge
	}

	return fields, nil
}

func requiredString(raw map[string]any, key string, maxRunes int) (string, error) {
	value, err := optionalString(raw, key, maxRunes)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", apperrors.New(apperrors.CodeBadInput, key+" is required")
	}
	return value, nil
}

func optionalString(raw map[string]any, key string, maxRunes int) (string, error) {
	value, ok := raw[key]
	if !ok || value == nil {
		return "", nil
	}
	text, ok := value.(string)
	if !ok {
		return "", apperrors.New(apperrors.CodeBadInput, key+" must be a string")
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > maxRunes {
		return "", apperrors.New(apperrors.CodeBadInput, fmt.Sprintf("%s exceeds %d characters", key, maxRunes))
	}
	return text, nil
}
