package media

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"time"

	"golang.org/x/image/draw"
)

// DefaultMaxArtSize bounds the longer side of encoded cover art, in pixels.
const DefaultMaxArtSize = 300

// Media info keys
const (
	InfoTitle    = "Title"
	InfoArtist   = "Artist"
	InfoAlbum    = "Album"
	InfoAlbumArt = "AlbumArt"
)

// Metadata contains the track metadata published by a session
type Metadata struct {
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
	ArtURL   string
	Art      image.Image
}

// InfoExtractor builds sparse media info maps.
type InfoExtractor struct {
	MaxArtSize int
}

// ExtractMediaInfo extracts media info using the default art bound.
func ExtractMediaInfo(md *Metadata) map[string]string {
	return InfoExtractor{MaxArtSize: DefaultMaxArtSize}.Extract(md)
}

// Extract returns the non-empty title, artist and album of md, plus the cover
// art as a base64 PNG when md carries an image. Absent values are omitted.
func (x InfoExtractor) Extract(md *Metadata) map[string]string {
	info := make(map[string]string)
	if md == nil {
		return info
	}

	addInfo(info, InfoTitle, md.Title)
	addInfo(info, InfoArtist, md.Artist)
	addInfo(info, InfoAlbum, md.Album)

	if md.Art != nil {
		if encoded, err := EncodeArt(md.Art, x.maxArtSize()); err == nil {
			info[InfoAlbumArt] = encoded
		} else {
			log.Debugf("Dropping unencodable cover art: %v", err)
		}
	}

	return info
}

func (x InfoExtractor) maxArtSize() int {
	if x.MaxArtSize <= 0 {
		return DefaultMaxArtSize
	}
	return x.MaxArtSize
}

func addInfo(info map[string]string, key, value string) {
	if value != "" {
		info[key] = value
	}
}

// EncodeArt re-encodes img as a base64 PNG, downscaling it first so that
// neither side exceeds maxSize. Aspect ratio is preserved.
func EncodeArt(img image.Image, maxSize int) (string, error) {
	scaled := ScaleArt(img, maxSize)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ScaleArt returns img unchanged when it fits in maxSize x maxSize, otherwise
// a bilinear-scaled copy whose longer side is maxSize.
func ScaleArt(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSize && h <= maxSize {
		return img
	}

	dw, dh := maxSize, maxSize
	if w >= h {
		dh = max(h*maxSize/w, 1)
	} else {
		dw = max(w*maxSize/h, 1)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
