package core

import (
	"sort"
	"strings"
)

// AssetKind describes an uploadable asset type and the resource names the
// remote API uses for it.
type AssetKind struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ResourceType string `json:"resource_type"`
	SetRelation  string `json:"set_relation"`
	SetType      string `json:"set_type"`
}

// BuiltInAssetKinds are the asset kinds the gateway knows how to upload.
var BuiltInAssetKinds = []AssetKind{
	{
		Name:         "screenshot",
		Description:  "App Store screenshot in a screenshot set",
		ResourceType: "appScreenshots",
		SetRelation:  "appScreenshotSet",
		SetType:      "appScreenshotSets",
	},
	{
		Name:         "preview",
		Description:  "App preview video in a preview set",
		ResourceType: "appPreviews",
		SetRelation:  "appPreviewSet",
		SetType:      "appPreviewSets",
	},
}

// LookupAssetKind finds a built-in kind by name.
func LookupAssetKind(name string) (AssetKind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, kind := range BuiltInAssetKinds {
		if kind.Name == normalized {
			return kind, true
		}
	}
	return AssetKind{}, false
}

// AssetKindNames lists the built-in kind names.
func AssetKindNames() []string {
	names := make([]string, 0, len(BuiltInAssetKinds))
	for _, kind := range BuiltInAssetKinds {
		names = append(names, kind.Name)
	}
	sort.Strings(names)
	return names
}

// HTTPHeader is a name/value pair the upload destination requires.
type HTTPHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UploadOperation is one byte range transfer returned by a reservation.
type UploadOperation struct {
	Method         string       `json:"method"`
	URL            string       `json:"url"`
	Offset         int64        `json:"offset"`
	Length         int64        `json:"length"`
	RequestHeaders []HTTPHeader `json:"requestHeaders"`
}

// ValidateUploadPlan checks that ops, taken in offset order, cover exactly
// [0, size) without gaps or overlaps.
func ValidateUploadPlan(ops []UploadOperation, size int64) error {
	if len(ops) == 0 {
		return NewFailure(KindUpload, "reservation returned no upload operations")
	}

	ordered := make([]UploadOperation, len(ops))
	copy(ordered, ops)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Offset < ordered[j].Offset })

	var next int64
	for i, op := range ordered {
		if strings.TrimSpace(op.URL) == "" {
			return Failuref(KindUpload, "upload operation %d has no destination", i)
		}
		if op.Length <= 0 {
			return Failuref(KindUpload, "upload operation %d has non-positive length %d", i, op.Length)
		}
		if op.Offset < 0 || op.Offset+op.Length > size {
			return Failuref(KindUpload, "upload operation %d range [%d,%d) is outside the %d byte payload", i, op.Offset, op.Offset+op.Length, size)
		}
		switch {
		case op.Offset > next:
			return Failuref(KindUpload, "upload operations leave bytes [%d,%d) uncovered", next, op.Offset)
		case op.Offset < next:
			return Failuref(KindUpload, "upload operations overlap at byte %d", op.Offset)
		}
		next = op.Offset + op.Length
	}
	if next != size {
		return Failuref(KindUpload, "upload operations cover %d of %d bytes", next, size)
	}
	return nil
}
