package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/mjl-/sconf"
	"golang.org/x/exp/slog"

	"github.com/mjl-/imapparse/config"
	"github.com/mjl-/imapparse/imapclient"
	"github.com/mjl-/imapparse/mlog"
	"github.com/mjl-/imapparse/moxvar"
	"github.com/mjl-/imapparse/utf7"
)

func envString(k, def string) string {
	s := os.Getenv(k)
	if s == "" {
		return def
	}
	return s
}

var commands = []struct {
	cmd string
	fn  func(c *cmd)
}{
	{"parse", cmdParse},
	{"fetch", cmdFetch},
	{"search", cmdSearch},
	{"utf7 encode", cmdUTF7Encode},
	{"utf7 decode", cmdUTF7Decode},
	{"date parse", cmdDateParse},
	{"date format", cmdDateFormat},
	{"date criteria", cmdDateCriteria},
	{"config test", cmdConfigTest},
	{"config describe", cmdConfigDescribe},
	{"help", cmdHelp},
	{"version", cmdVersion},

	// Not listed.
	{"helpall", cmdHelpall},
}

var cmds []cmd

func init() {
	for _, xc := range commands {
		c := cmd{words: strings.Split(xc.cmd, " "), fn: xc.fn}
		cmds = append(cmds, c)
	}
}

type cmd struct {
	words []string
	fn    func(c *cmd)

	// Set before calling command.
	flag     *flag.FlagSet
	flagArgs []string
	_gather  bool // Set when using Parse to gather usage for a command.

	// Set by invoked command or Parse.
	unlisted bool   // If set, command is not listed until at least some words are matched from command.
	params   string // Arguments to command. Multiple lines possible.
	help     string // Additional explanation. First line is synopsis, the rest is only printed for an explicit help/usage for that command.
	args     []string

	log mlog.Log
}

func (c *cmd) Parse() []string {
	// To gather params and usage information, we just run the command but cause this
	// panic after the command has registered its flags and set its params and help
	// information. This is then caught and that info printed.
	if c._gather {
		panic("gather")
	}

	c.flag.Usage = c.Usage
	c.flag.Parse(c.flagArgs)
	c.args = c.flag.Args()
	return c.args
}

func (c *cmd) gather() {
	c.flag = flag.NewFlagSet("imapparse "+strings.Join(c.words, " "), flag.ExitOnError)
	c._gather = true
	defer func() {
		x := recover()
		// panic generated by Parse.
		if x != "gather" {
			panic(x)
		}
	}()
	c.fn(c)
}

func (c *cmd) makeUsage() string {
	var r strings.Builder
	cs := "imapparse " + strings.Join(c.words, " ")
	for i, line := range strings.Split(strings.TrimSpace(c.params), "\n") {
		s := ""
		if i == 0 {
			s = "usage:"
		}
		if line != "" {
			line = " " + line
		}
		fmt.Fprintf(&r, "%6s %s%s\n", s, cs, line)
	}
	c.flag.SetOutput(&r)
	c.flag.PrintDefaults()
	return r.String()
}

func (c *cmd) printUsage() {
	fmt.Fprint(os.Stderr, c.makeUsage())
	if c.help != "" {
		fmt.Fprint(os.Stderr, "\n"+c.help+"\n")
	}
}

func (c *cmd) Usage() {
	c.printUsage()
	os.Exit(2)
}

func cmdHelp(c *cmd) {
	c.params = "[command ...]"
	c.help = `Prints help about matching commands.

If multiple commands match, they are listed along with the first line of their help text.
If a single command matches, its usage and full help text is printed.
`
	args := c.Parse()
	if len(args) == 0 {
		c.Usage()
	}

	prefix := func(l, pre []string) bool {
		if len(pre) > len(l) {
			return false
		}
		return slices.Equal(pre, l[:len(pre)])
	}

	var partial []cmd
	for _, c := range cmds {
		if slices.Equal(c.words, args) {
			c.gather()
			fmt.Print(c.makeUsage())
			if c.help != "" {
				fmt.Print("\n" + c.help + "\n")
			}
			return
		} else if prefix(c.words, args) {
			partial = append(partial, c)
		}
	}
	if len(partial) == 0 {
		fmt.Fprintf(os.Stderr, "%s: unknown command\n", strings.Join(args, " "))
		os.Exit(2)
	}
	for _, c := range partial {
		c.gather()
		line := "imapparse " + strings.Join(c.words, " ")
		fmt.Printf("%s\n", line)
		if c.help != "" {
			fmt.Printf("\t%s\n", strings.Split(c.help, "\n")[0])
		}
	}
}

func cmdHelpall(c *cmd) {
	c.unlisted = true
	c.help = `Print all detailed usage and help information for all listed commands.

Used to generate documentation.
`
	args := c.Parse()
	if len(args) != 0 {
		c.Usage()
	}

	n := 0
	for _, c := range cmds {
		c.gather()
		if c.unlisted {
			continue
		}
		if n > 0 {
			fmt.Fprintf(os.Stderr, "\n")
		}
		n++

		fmt.Fprintf(os.Stderr, "# imapparse %s\n\n", strings.Join(c.words, " "))
		if c.help != "" {
			fmt.Fprintln(os.Stderr, c.help+"\n")
		}
		s := c.makeUsage()
		s = "\t" + strings.ReplaceAll(s, "\n", "\n\t")
		fmt.Fprintln(os.Stderr, s)
	}
}

func usage(l []cmd, unlisted bool) {
	var lines []string
	if !unlisted {
		lines = append(lines, "imapparse [-config imapparse.conf] [-loglevel level] ...")
	}
	for _, c := range l {
		c.gather()
		if c.unlisted && !unlisted {
			continue
		}
		for _, line := range strings.Split(c.params, "\n") {
			x := append([]string{"imapparse"}, c.words...)
			if line != "" {
				x = append(x, line)
			}
			lines = append(lines, strings.Join(x, " "))
		}
	}
	for i, line := range lines {
		pre := "       "
		if i == 0 {
			pre = "usage: "
		}
		fmt.Fprintln(os.Stderr, pre+line)
	}
	os.Exit(2)
}

var configPath string
var loglevel string // If non-empty, overrides the log level from the config file.

// Configuration, from the config file if one was specified.
var conf = config.Default()

// loadConfig loads the config file, if any, and sets the log levels.
func loadConfig() {
	if configPath != "" {
		c, errs := config.Load(configPath)
		if len(errs) > 0 {
			for _, err := range errs {
				log.Printf("%s", err)
			}
			log.Fatalf("invalid config file %s", configPath)
		}
		conf = c
	}
	if loglevel != "" {
		level, ok := mlog.Levels[loglevel]
		if !ok {
			log.Fatalf("unknown loglevel %q", loglevel)
		}
		conf.Log[""] = level
	}
	mlog.SetConfig(conf.Log)
}

func main() {
	log.SetFlags(0)

	flag.StringVar(&configPath, "config", envString("IMAPPARSECONF", ""), "configuration file, defaults to $IMAPPARSECONF, without config file default settings are used")
	flag.StringVar(&loglevel, "loglevel", "", "if non-empty, this log level is set, overriding the config file")

	flag.Usage = func() { usage(cmds, false) }
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage(cmds, false)
	}

	loadConfig()

	var partial []cmd
next:
	for _, c := range cmds {
		for i, w := range c.words {
			if i >= len(args) || w != args[i] {
				if i > 0 {
					partial = append(partial, c)
				}
				continue next
			}
		}
		c.flag = flag.NewFlagSet("imapparse "+strings.Join(c.words, " "), flag.ExitOnError)
		c.flagArgs = args[len(c.words):]
		c.log = mlog.New(strings.Join(c.words, ""), nil)
		c.fn(&c)
		return
	}
	if len(partial) > 0 {
		usage(partial, true)
	}
	usage(cmds, false)
}

func xcheckf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	log.Fatalf("%s: %s", msg, err)
}

func cmdConfigTest(c *cmd) {
	c.help = `Parses and validates the configuration file.

If valid, the command exits with status 0. If not valid, all errors encountered
are printed.
`
	args := c.Parse()
	if len(args) != 0 {
		c.Usage()
	}
	if configPath == "" {
		log.Fatalf("no config file, specify one with -config or $IMAPPARSECONF")
	}

	_, errs := config.Load(configPath)
	if len(errs) > 1 {
		log.Printf("multiple errors:")
		for _, err := range errs {
			log.Printf("%s", err)
		}
		os.Exit(1)
	} else if len(errs) == 1 {
		log.Fatalf("%s", errs[0])
	}
	fmt.Println("config OK")
}

func cmdConfigDescribe(c *cmd) {
	c.params = ">imapparse.conf"
	c.help = `Prints an annotated empty configuration for use as imapparse.conf.

All fields are optional. Without config file, the defaults are used.
`
	if len(c.Parse()) != 0 {
		c.Usage()
	}

	var sc config.Static
	err := sconf.Describe(os.Stdout, &sc)
	xcheckf(err, "describing config")
}

func cmdUTF7Encode(c *cmd) {
	c.params = "mailbox"
	c.help = `Encode a mailbox name to IMAP modified UTF-7.

Printable ASCII characters except "&" are written as is. Other characters are
written in a modified base64 form of UTF-16, enclosed in "&" and "-".
`
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}

	buf, err := utf7.Encode(args[0])
	xcheckf(err, "encoding mailbox name")
	fmt.Println(string(buf))
}

func cmdUTF7Decode(c *cmd) {
	c.params = "mailbox"
	c.help = `Decode an IMAP modified UTF-7 mailbox name.`
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}

	s, err := utf7.Decode([]byte(args[0]))
	xcheckf(err, "decoding mailbox name")
	fmt.Println(s)
}

func cmdDateParse(c *cmd) {
	c.params = "[-keeptz] date-time"
	c.help = `Parse an INTERNALDATE or envelope date-time and print it in RFC 3339 form.

For example "17-Jul-1996 02:44:25 -0700" or "Wed, 17 Jul 1996 02:23:25 -0700
(PDT)". By default the time is converted to the local time zone.
`
	var keeptz bool
	c.flag.BoolVar(&keeptz, "keeptz", conf.Fetch.KeepTimezone, "keep the time zone offset of the date-time instead of converting to the local time zone")
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}

	tm, err := imapclient.ParseDateTime(args[0], !keeptz)
	xcheckf(err, "parsing date-time")
	fmt.Println(tm.Format(time.RFC3339))
}

func cmdDateFormat(c *cmd) {
	c.params = "rfc3339-date-time"
	c.help = `Format an RFC 3339 date-time as INTERNALDATE, e.g. for APPEND.`
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}

	tm, err := time.Parse(time.RFC3339, args[0])
	xcheckf(err, "parsing rfc 3339 date-time")
	fmt.Println(imapclient.FormatInternalDate(tm))
}

func cmdDateCriteria(c *cmd) {
	c.params = "yyyy-mm-dd"
	c.help = `Format a date for SEARCH criteria like SINCE and BEFORE.`
	args := c.Parse()
	if len(args) != 1 {
		c.Usage()
	}

	tm, err := time.Parse("2006-01-02", args[0])
	xcheckf(err, "parsing date")
	s, err := imapclient.FormatCriteriaDate(tm)
	xcheckf(err, "formatting date")
	c.log.Debug("formatted search date", slog.String("date", s))
	fmt.Println(s)
}

func cmdVersion(c *cmd) {
	c.help = "Prints this imapparse version."
	if len(c.Parse()) != 0 {
		c.Usage()
	}
	fmt.Println(moxvar.Version)
	fmt.Printf("%s %s/%s\n", moxvar.GoVersion, runtime.GOOS, runtime.GOARCH)
}
