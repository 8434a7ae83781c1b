/*
Command imapparse parses IMAP server responses as captured from a connection,
and prints them as JSON or YAML.

  - Tokenizing and parsing of response lines, including literals and nested
    parenthesized lists.
  - FETCH responses turned into per-message records, keyed by UID or sequence
    number, with interpreted INTERNALDATE, ENVELOPE and BODYSTRUCTURE.
  - SEARCH responses, including a CONDSTORE modseq.
  - Conversion of IMAP date-times, and of modified UTF-7 mailbox names.

# Commands

	imapparse [-config imapparse.conf] [-loglevel level] ...
	imapparse parse [-format json|yaml] file ...
	imapparse fetch [-seq] [-keeptz] [-format json|yaml] file ...
	imapparse search file ...
	imapparse utf7 encode mailbox
	imapparse utf7 decode mailbox
	imapparse date parse [-keeptz] date-time
	imapparse date format rfc3339-date-time
	imapparse date criteria yyyy-mm-dd
	imapparse config test
	imapparse config describe >imapparse.conf
	imapparse help [command ...]
	imapparse version

Use "imapparse help command" for the full help text of a command.

# Configuration

A configuration file is optional. Without one, logging is at level "error",
lines may be up to 1MB, FETCH records are keyed by UID, times are converted to
the local time zone, and output is JSON. Print an annotated example with
"imapparse config describe".
*/
package main
