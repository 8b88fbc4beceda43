package texture

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/gogpu/overlay/gfx"
	"github.com/gogpu/overlay/gfx/gfxtest"
)

func lineHeight(t *testing.T, size float64) int {
	t.Helper()
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		t.Fatalf("NewFace: %v", err)
	}
	defer face.Close()
	m := face.Metrics()
	return (m.Ascent + m.Descent).Ceil()
}

func TestRasterizeTextDimensions(t *testing.T) {
	base, err := RasterizeText(TextOptions{Text: "this is water", SizePx: 36})
	if err != nil {
		t.Fatalf("RasterizeText: %v", err)
	}
	b := base.Bounds()
	if want := lineHeight(t, 36); b.Dy() != want {
		t.Errorf("height = %d, want %d", b.Dy(), want)
	}
	if b.Dx() <= 0 {
		t.Fatalf("width = %d, want > 0", b.Dx())
	}

	for _, pad := range []int{1, 4, 10} {
		img, err := RasterizeText(TextOptions{Text: "this is water", SizePx: 36, PaddingPx: pad})
		if err != nil {
			t.Fatalf("pad %d: %v", pad, err)
		}
		got := img.Bounds()
		if got.Dx() != b.Dx()+2*pad || got.Dy() != b.Dy()+2*pad {
			t.Errorf("pad %d: size = %dx%d, want %dx%d",
				pad, got.Dx(), got.Dy(), b.Dx()+2*pad, b.Dy()+2*pad)
		}
	}
}

func TestRasterizeTextWidthCoversDrawnAdvance(t *testing.T) {
	f, _ := opentype.Parse(goregular.TTF)
	face, _ := opentype.NewFace(f, &opentype.FaceOptions{Size: 24, DPI: 72, Hinting: font.HintingNone})
	defer face.Close()

	for _, s := range []string{"a", "WWWW", "this is water", "iii"} {
		img, err := RasterizeText(TextOptions{Text: s, SizePx: 24})
		if err != nil {
			t.Fatalf("%q: %v", s, err)
		}
		if drawn := font.MeasureString(face, s).Ceil(); img.Bounds().Dx() < drawn {
			t.Errorf("%q: width = %d, want >= %d", s, img.Bounds().Dx(), drawn)
		}
	}
}

func TestRasterizeTextDeterministic(t *testing.T) {
	opts := TextOptions{
		Text:       "watermark",
		SizePx:     20,
		Foreground: color.NRGBA{0xff, 0, 0, 0xff},
		Background: color.NRGBA{0, 0, 0, 0x80},
		PaddingPx:  3,
	}
	a, err := RasterizeText(opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := RasterizeText(opts)
	if err != nil {
		t.Fatal(err)
	}
	if a.Rect != b.Rect || !bytes.Equal(a.Pix, b.Pix) {
		t.Error("identical options produced different images")
	}
}

func TestRasterizeTextBackgroundAndForeground(t *testing.T) {
	bg := color.NRGBA{0, 0, 0xff, 0xff}
	img, err := RasterizeText(TextOptions{
		Text:       "HH",
		SizePx:     30,
		Foreground: color.White,
		Background: bg,
		PaddingPx:  4,
	})
	if err != nil {
		t.Fatal(err)
	}
	b := img.Bounds()
	corners := []image.Point{{0, 0}, {b.Dx() - 1, 0}, {0, b.Dy() - 1}, {b.Dx() - 1, b.Dy() - 1}}
	for _, p := range corners {
		if got := img.RGBAAt(p.X, p.Y); got != (color.RGBA{0, 0, 0xff, 0xff}) {
			t.Errorf("corner %v = %v, want %v", p, got, bg)
		}
	}

	white := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] == 0xff && img.Pix[i+1] == 0xff {
			white++
		}
	}
	if white == 0 {
		t.Error("no foreground pixels drawn")
	}
}

func TestRasterizeTextMultiline(t *testing.T) {
	one, err := RasterizeText(TextOptions{Text: "line", SizePx: 16})
	if err != nil {
		t.Fatal(err)
	}
	two, err := RasterizeText(TextOptions{Text: "line\nline", SizePx: 16, LineSpacing: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := two.Bounds().Dy(), 2*one.Bounds().Dy(); got != want {
		t.Errorf("two lines height = %d, want %d", got, want)
	}
	if two.Bounds().Dx() != one.Bounds().Dx() {
		t.Errorf("two lines width = %d, want %d", two.Bounds().Dx(), one.Bounds().Dx())
	}
}

func TestRasterizeTextShadow(t *testing.T) {
	plain, err := RasterizeText(TextOptions{Text: "I", SizePx: 24, Foreground: color.White, PaddingPx: 4})
	if err != nil {
		t.Fatal(err)
	}
	shadowed, err := RasterizeText(TextOptions{
		Text: "I", SizePx: 24, Foreground: color.White, PaddingPx: 4,
		Shadow: &Shadow{DX: 2, DY: 2, Color: color.Black},
	})
	if err != nil {
		t.Fatal(err)
	}
	if plain.Rect != shadowed.Rect {
		t.Fatalf("shadow changed size: %v vs %v", plain.Rect, shadowed.Rect)
	}
	if bytes.Equal(plain.Pix, shadowed.Pix) {
		t.Error("shadow did not change pixels")
	}
}

func TestRasterizeTextErrors(t *testing.T) {
	tests := []struct {
		name string
		opts TextOptions
		want error
	}{
		{"zero size", TextOptions{Text: "x", SizePx: 0}, ErrInvalidSize},
		{"negative size", TextOptions{Text: "x", SizePx: -3}, ErrInvalidSize},
		{"empty", TextOptions{Text: "", SizePx: 12}, ErrEmptyText},
		{"bad font", TextOptions{Text: "x", SizePx: 12, Font: []byte("nope")}, ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RasterizeText(tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrDecode) {
				t.Errorf("err = %v, want it to match ErrDecode", err)
			}
		})
	}
}

func TestRasterizeTextEmptyWithPadding(t *testing.T) {
	img, err := RasterizeText(TextOptions{Text: "", SizePx: 12, PaddingPx: 2})
	if err != nil {
		t.Fatalf("RasterizeText: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("width = %d, want 4", img.Bounds().Dx())
	}
}

func TestBidiRuns(t *testing.T) {
	if got := visualString(bidiRuns("abc")); got != "abc" {
		t.Errorf("visual order of abc = %q", got)
	}
	if got := visualString([]textRun{{text: "ab"}, {text: "אב", rtl: true}}); got != "abבא" {
		t.Errorf("visualString = %q, want %q", got, "abבא")
	}
	if bidiRuns("") != nil {
		t.Error("bidiRuns(\"\") should be nil")
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage("a.png", encodePNG(t, 12, 6), 0)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 12 || b.Dy() != 6 {
		t.Errorf("size = %v, want 12x6", b.Size())
	}

	img, err = DecodeImage("big.png", encodePNG(t, 200, 100), 50)
	if err != nil {
		t.Fatalf("DecodeImage scaled: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("scaled size = %v, want 50x25", b.Size())
	}

	for _, data := range [][]byte{nil, []byte("not an image")} {
		_, err := DecodeImage("bad", data, 0)
		var de *ResourceDecodeError
		if !errors.As(err, &de) || de.Ref != "bad" {
			t.Errorf("DecodeImage(%q) err = %v, want ResourceDecodeError", data, err)
		}
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, limit  int
		wantW, wantH int
	}{
		{10, 10, 0, 10, 10},
		{10, 10, 20, 10, 10},
		{100, 50, 10, 10, 5},
		{50, 100, 10, 5, 10},
		{1000, 1, 10, 10, 1},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.limit)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fitWithin(%d, %d, %d) = %d, %d, want %d, %d",
				tt.w, tt.h, tt.limit, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#ff0000", color.NRGBA{0xff, 0, 0, 0xff}, false},
		{"#00000000", color.NRGBA{}, false},
		{"#80ff0000", color.NRGBA{0xff, 0, 0, 0x80}, false},
		{"#fff", color.NRGBA{0xff, 0xff, 0xff, 0xff}, false},
		{" White ", color.NRGBA{0xff, 0xff, 0xff, 0xff}, false},
		{"transparent", color.NRGBA{}, false},
		{"ff0000", color.NRGBA{}, true},
		{"#ff00", color.NRGBA{}, true},
		{"#gggggg", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestProvider(t *testing.T) {
	rec := gfxtest.New()
	fsys := fstest.MapFS{
		"mark.png": {Data: encodePNG(t, 8, 4)},
		"bad.png":  {Data: []byte("garbage")},
	}
	p := NewProvider(rec, fsys)

	img, err := p.LoadStaticImage("mark.png")
	if err != nil {
		t.Fatalf("LoadStaticImage: %v", err)
	}
	if img.ID == gfx.InvalidID || img.Width != 8 || img.Height != 4 {
		t.Errorf("LoadStaticImage = %+v", img)
	}

	txt, err := p.RenderText(TextOptions{Text: "hi", SizePx: 12, PaddingPx: 1})
	if err != nil {
		t.Fatalf("RenderText: %v", err)
	}
	if txt.ID == img.ID {
		t.Error("text and image share a texture")
	}
	if rec.Live() != 2 {
		t.Errorf("live resources = %d, want 2", rec.Live())
	}

	calls := rec.Calls()
	if len(calls) != 2 || calls[0].Args[2] != gfx.DefaultSampler {
		t.Errorf("calls = %v, want two CreateTexture with the default sampler", calls)
	}

	for _, ref := range []string{"bad.png", "missing.png"} {
		if _, err := p.LoadStaticImage(ref); !errors.Is(err, ErrDecode) {
			t.Errorf("LoadStaticImage(%q) err = %v, want ErrDecode", ref, err)
		}
	}
}

func TestProviderUploadFailure(t *testing.T) {
	rec := gfxtest.New()
	rec.FailTexture = errors.New("out of memory")
	p := NewProvider(rec, fstest.MapFS{}, WithSampler(gfx.Sampler{WrapS: gfx.WrapClamp}))
	_, err := p.RenderText(TextOptions{Text: "x", SizePx: 10})
	if !errors.Is(err, ErrDecode) || !errors.Is(err, rec.FailTexture) {
		t.Errorf("err = %v, want ErrDecode wrapping the upload error", err)
	}
}

func TestRasterizeTextCustomFont(t *testing.T) {
	opts := TextOptions{Text: "custom", SizePx: 18, Foreground: color.White}
	want, err := RasterizeText(opts)
	if err != nil {
		t.Fatalf("RasterizeText(default font): %v", err)
	}

	data := bytes.Clone(goregular.TTF)
	opts.Font = data
	before := customFonts.Len()
	for range 2 {
		got, err := RasterizeText(opts)
		if err != nil {
			t.Fatalf("RasterizeText(custom font): %v", err)
		}
		if !bytes.Equal(got.Pix, want.Pix) {
			t.Error("same font bytes rendered differently than the built-in face")
		}
	}
	if got := customFonts.Len() - before; got > 1 {
		t.Errorf("parsed fonts cached = %d, want at most 1 new entry", got)
	}
	if _, ok := customFonts.Get(sha256.Sum256(data)); !ok {
		t.Error("custom font not cached")
	}
}
