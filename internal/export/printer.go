package export

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Job is a print-ready document handed to a Printer
type Job struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ContentType string    `json:"content_type"`
	Document    []byte    `json:"-"`
	Digest      string    `json:"digest"`
	CreatedAt   time.Time `json:"created_at"`
}

// Printer is the platform print facility
type Printer interface {
	Print(ctx context.Context, job Job) error
}

// SpoolPrinter drops each job into a spool directory for a print agent to pick up
type SpoolPrinter struct {
	spool Storage
}

// NewSpoolPrinter creates a SpoolPrinter writing to spool
func NewSpoolPrinter(spool Storage) *SpoolPrinter {
	return &SpoolPrinter{spool: spool}
}

// Print writes the job document as <id>.html
func (p *SpoolPrinter) Print(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.spool.Save(job.ID+".html", job.Document); err != nil {
		return fmt.Errorf("spooling job %s: %w", job.ID, err)
	}
	return nil
}

// CommandPrinter pipes each job into an external command such as lp
type CommandPrinter struct {
	name string
	args []string
}

// NewCommandPrinter parses a command line like "lp -d receipts"
func NewCommandPrinter(commandLine string) (*CommandPrinter, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty print command")
	}
	return &CommandPrinter{name: fields[0], args: fields[1:]}, nil
}

// Print runs the command with the document on stdin
func (p *CommandPrinter) Print(ctx context.Context, job Job) error {
	cmd := exec.CommandContext(ctx, p.name, p.args...)
	cmd.Stdin = bytes.NewReader(job.Document)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("running %s for job %s: %w: %s", p.name, job.ID, err, strings.TrimSpace(string(out)))
	}
	return nil
}
