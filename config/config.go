// Package config holds the configuration file definition for the imapparse
// command, in sconf format.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mjl-/sconf"
	"golang.org/x/exp/slog"

	"github.com/mjl-/imapparse/imapclient"
	"github.com/mjl-/imapparse/mlog"
)

// DefaultMaxLineSize is the maximum size of a response line read from an
// input file, in bytes, if not configured.
const DefaultMaxLineSize = 1024 * 1024

// Static is the parsed form of the configuration file.
type Static struct {
	LogLevel         string            `sconf:"optional" sconf-doc:"NOTE: This config file is in 'sconf' format. Indent with tabs. Comments must be on their own line, they don't end a line. Do not escape or quote strings. Details: https://pkg.go.dev/github.com/mjl-/sconf.\n\n\nDefault log level, one of: error, info, debug, trace, traceauth, tracedata. Trace logs tokens that could not be decoded as utf-8, tracedata also the data of literals. Default: error."`
	PackageLogLevels map[string]string `sconf:"optional" sconf-doc:"Overrides of log level per package, e.g. imapclient, utf7, config."`
	MaxLineSize      int               `sconf:"optional" sconf-doc:"Maximum size of a line read from a response file, in bytes. Default: 1MB."`
	Fetch            struct {
		KeyBySeq     bool `sconf:"optional" sconf-doc:"Key FETCH records by message sequence number instead of by UID."`
		KeepTimezone bool `sconf:"optional" sconf-doc:"Keep the time zone offset of INTERNALDATE and envelope dates, instead of converting to the local time zone."`
	} `sconf:"optional" sconf-doc:"Interpretation of FETCH responses."`
	Output struct {
		Format string `sconf:"optional" sconf-doc:"Format for printing parsed responses, json or yaml. Default: json."`
	} `sconf:"optional" sconf-doc:"Output of parsed responses."`

	// Parsed form of LogLevel and PackageLogLevels.
	Log map[string]slog.Level `sconf:"-" json:"-"`
}

// Default returns the configuration used when no configuration file is given.
func Default() Static {
	var c Static
	errs := c.prepare()
	if len(errs) > 0 {
		panic(fmt.Sprintf("default config: %v", errs))
	}
	return c
}

// Load parses and checks the configuration file at path.
func Load(path string) (Static, []error) {
	var c Static
	f, err := os.Open(path)
	if err != nil {
		return c, []error{fmt.Errorf("open config file: %v", err)}
	}
	defer f.Close()
	if err := sconf.Parse(f, &c); err != nil {
		return c, []error{fmt.Errorf("parsing %s%v", path, err)}
	}
	if errs := c.prepare(); len(errs) > 0 {
		return c, errs
	}
	return c, nil
}

// prepare sets defaults and checks the values.
func (c *Static) prepare() (errs []error) {
	addErrorf := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.LogLevel == "" {
		c.LogLevel = "error"
	}
	c.Log = map[string]slog.Level{}
	if level, ok := mlog.Levels[c.LogLevel]; ok {
		c.Log[""] = level
	} else {
		addErrorf("invalid log level %q", c.LogLevel)
	}
	for pkg, s := range c.PackageLogLevels {
		if level, ok := mlog.Levels[s]; ok {
			c.Log[pkg] = level
		} else {
			addErrorf("invalid package log level %q for package %q", s, pkg)
		}
	}

	if c.MaxLineSize == 0 {
		c.MaxLineSize = DefaultMaxLineSize
	} else if c.MaxLineSize < 0 {
		addErrorf("invalid negative max line size %d", c.MaxLineSize)
	}

	c.Output.Format = strings.ToLower(c.Output.Format)
	switch c.Output.Format {
	case "":
		c.Output.Format = "json"
	case "json", "yaml":
	default:
		addErrorf("unknown output format %q, must be json or yaml", c.Output.Format)
	}
	return errs
}

// FetchOptions returns the options for parsing FETCH responses.
func (c Static) FetchOptions() imapclient.FetchOptions {
	opts := imapclient.DefaultFetchOptions()
	if c.Fetch.KeyBySeq {
		opts.Key = imapclient.KeySeq
	}
	opts.NormaliseTimes = !c.Fetch.KeepTimezone
	return opts
}
