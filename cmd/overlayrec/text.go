package main

import (
	"fmt"
	"image/png"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gogpu/overlay/texture"
)

// NewTextCommand creates the text command.
func NewTextCommand(v *viper.Viper) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "text",
		Short: "Render the text watermark to a PNG file",
		Long:  `Render the text watermark exactly as it is uploaded to the surface and write it as PNG, to check fonts, colors and padding.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(v, cmd, textFlags)
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			var font []byte
			if path := cfg.Watermark.FontFile; path != "" {
				if font, err = os.ReadFile(path); err != nil {
					return fmt.Errorf("read font: %w", err)
				}
			}
			img, err := texture.RasterizeText(cfg.TextOptions(font))
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := png.Encode(f, img); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			b := img.Bounds()
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%dx%d)\n", output, b.Dx(), b.Dy())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "text.png", "Output PNG file")
	flags.String("text", "", "Text to render")
	flags.Float64("size", 0, "Text size in pixels")
	flags.String("foreground", "", "Text color, #RRGGBB or #AARRGGBB")
	flags.String("background", "", "Background color")
	flags.Int("padding", 0, "Padding in pixels")
	flags.String("font", "", "TrueType or OpenType font file")

	return cmd
}

var textFlags = map[string]string{
	"watermark.text":       "text",
	"watermark.size_px":    "size",
	"watermark.foreground": "foreground",
	"watermark.background": "background",
	"watermark.padding":    "padding",
	"watermark.font_file":  "font",
}
