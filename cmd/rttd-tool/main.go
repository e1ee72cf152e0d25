package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/config"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/keywords"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath string
		locale     string
	)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validateCmd.StringVar(&configPath, "config", "rttd.yaml", "Path to daemon configuration")
	keywordsCmd := flag.NewFlagSet("keywords", flag.ExitOnError)
	keywordsCmd.StringVar(&locale, "lang", "en", "Locale of the text")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'keywords', 'validate' or 'version'")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "keywords":
		keywordsCmd.Parse(os.Args[2:])
		text := strings.Join(keywordsCmd.Args(), " ")
		if text == "" {
			fmt.Fprintln(os.Stderr, "usage: rttd-tool keywords -lang ja <text>")
			os.Exit(2)
		}
		for _, kw := range keywords.Extract(text, locale) {
			fmt.Println(kw)
		}
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if _, err := config.Load(configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("config valid")
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}
