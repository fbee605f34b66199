package provider

import "testing"

func TestExtensionFor_KnownMimeTypes(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":      "jpg",
		"image/png":       "png",
		"image/webp":      "webp",
		"video/mp4":       "mp4",
		"video/3gpp":      "3gp",
		"audio/mpeg":      "mp3",
		"audio/ogg":       "ogg",
		"audio/wav":       "wav",
		"application/pdf": "pdf",
	}
	for mime, want := range cases {
		if got := extensionFor(mime); got != want {
			t.Errorf("extensionFor(%q) = %q, want %q", mime, got, want)
		}
	}
}

func TestExtensionFor_UnknownMimeFallsBackToBin(t *testing.T) {
	if got := extensionFor("application/x-unknown"); got != "bin" {
		t.Errorf("extensionFor(unknown) = %q, want bin", got)
	}
}
