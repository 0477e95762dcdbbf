// Package selector asks the user which URL list files to leave out of a run.
package selector

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/vertextoedge/image-downloader/internal/domain"
)

// Answer is the parsed reply to a single prompt
type Answer int

// Answer values
const (
	// AnswerKeep includes the file
	AnswerKeep Answer = iota
	// AnswerRemove excludes the file
	AnswerRemove
	// AnswerKeepRest includes the file and every remaining file without asking
	AnswerKeepRest
)

// ParseAnswer maps a reply to an Answer by case-insensitive prefix:
// "y" removes, "s" keeps the rest, anything else keeps. Only the line
// terminator is stripped, so a reply with leading blanks keeps the file.
func ParseAnswer(reply string) Answer {
	reply = strings.ToLower(strings.TrimRight(reply, "\r\n"))
	switch {
	case strings.HasPrefix(reply, "y"):
		return AnswerRemove
	case strings.HasPrefix(reply, "s"):
		return AnswerKeepRest
	default:
		return AnswerKeep
	}
}

// Options configures a Selector
type Options struct {
	// AssumeYes keeps every file without prompting
	AssumeYes bool

	// Echo writes each reply after its prompt, for input that is not a terminal
	Echo bool
}

// Selector prompts once per file on out and reads replies from in
type Selector struct {
	in   *bufio.Reader
	out  io.Writer
	opts Options
}

// New creates a new Selector
func New(in io.Reader, out io.Writer, opts Options) *Selector {
	return &Selector{
		in:   bufio.NewReader(in),
		out:  out,
		opts: opts,
	}
}

// selection is the accumulator folded over the candidate files
type selection struct {
	kept     []string
	skipRest bool
}

// Select returns the files to process, in input order.
// It fails with domain.ErrNoInput when input ends before all prompts are answered.
func (s *Selector) Select(files []string) ([]string, error) {
	acc := selection{
		kept:     make([]string, 0, len(files)),
		skipRest: s.opts.AssumeYes,
	}

	for _, file := range files {
		var err error
		acc, err = s.step(acc, file)
		if err != nil {
			return nil, err
		}
	}
	return acc.kept, nil
}

func (s *Selector) step(acc selection, file string) (selection, error) {
	if acc.skipRest {
		acc.kept = append(acc.kept, file)
		return acc, nil
	}

	reply, err := s.ask(file)
	if err != nil {
		return acc, err
	}

	switch ParseAnswer(reply) {
	case AnswerRemove:
		return acc, nil
	case AnswerKeepRest:
		acc.skipRest = true
	}
	acc.kept = append(acc.kept, file)
	return acc, nil
}

func (s *Selector) ask(file string) (string, error) {
	fmt.Fprintf(s.out, "Remove file %s?: [y,n,s] ", filepath.Base(file))

	line, err := s.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read reply: %w", err)
		}
		if line == "" {
			fmt.Fprintln(s.out)
			return "", domain.ErrNoInput
		}
	}

	if s.opts.Echo {
		fmt.Fprintln(s.out, strings.TrimRight(line, "\r\n"))
	}
	return line, nil
}
