package common

import (
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/banner"
)

const bannerWidth = 64

// PrintBanner writes the startup banner to w and logs the same details.
func PrintBanner(w io.Writer, config *Config, logger *Logger) {
	info := GetVersionInfo()
	serviceURL := "http://" + config.Server.Address()
	remote := "local only"
	if config.Storage.Remote.Enabled() {
		remote = config.Storage.Remote.Address
	}

	textColor := banner.ColorBold + banner.ColorWhite
	hr := banner.ColorCyan + strings.Repeat("=", bannerWidth) + banner.ColorReset

	fmt.Fprintf(w, "\n%s\n\n", hr)
	fmt.Fprintf(w, "%s  NETWORTH%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(w, "%s  Personal net worth, cash flow and holdings%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(w, "\n%s\n\n", hr)

	rows := [][2]string{
		{"Version", info.Version},
		{"Build", info.Build},
		{"Commit", info.Commit},
		{"Environment", config.Environment},
		{"Service URL", serviceURL},
		{"Local store", config.Storage.Local.Path},
		{"Cloud store", remote},
	}
	for _, kv := range rows {
		fmt.Fprintf(w, "%s  %-14s %s%s\n", textColor, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(w, "\n%s\n\n", hr)

	logger.Info().
		Str("version", info.Version).
		Str("environment", config.Environment).
		Str("service_url", serviceURL).
		Str("local_store", config.Storage.Local.Path).
		Str("cloud_store", remote).
		Msg("Application started")
}

// PrintShutdownBanner writes the shutdown line to w.
func PrintShutdownBanner(w io.Writer, logger *Logger) {
	hr := banner.ColorCyan + strings.Repeat("=", 32) + banner.ColorReset
	fmt.Fprintf(w, "\n%s\n%s  NETWORTH SHUTTING DOWN%s\n%s\n\n", hr, banner.ColorBold+banner.ColorWhite, banner.ColorReset, hr)
	logger.Info().Msg("Application shutting down")
}
