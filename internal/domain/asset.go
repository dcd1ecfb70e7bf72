package domain

// AssetInput is an image field as submitted by a client: either fresh bytes
// to store, or a reference to an asset that already exists. A nil
// *AssetInput means the field was not supplied.
type AssetInput struct {
	fresh       bool
	Data        []byte
	Filename    string
	ContentType string
	URL         string
}

// FreshAsset wraps uploaded bytes.
func FreshAsset(data []byte, filename, contentType string) *AssetInput {
	return &AssetInput{fresh: true, Data: data, Filename: filename, ContentType: contentType}
}

// ReferenceAsset wraps an existing asset reference.
func ReferenceAsset(url string) *AssetInput {
	return &AssetInput{URL: url}
}

// IsFresh reports whether the input carries bytes to store.
func (a *AssetInput) IsFresh() bool { return a != nil && a.fresh }

// IsReference reports whether the input points at an existing asset.
func (a *AssetInput) IsReference() bool { return a != nil && !a.fresh }
