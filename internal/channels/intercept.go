package channels

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/docs"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/memory"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/tools"
)

// The fast paths recognize very common, highly structured driver messages
// and run the corresponding tool directly, skipping the model round trip.
// They call the same Executor the model would, so the two paths cannot
// drift apart. Anything the fast path cannot fully handle falls through to
// the loop.
var (
	deliveredRe = regexp.MustCompile(`(?i)^(?:load\s+)?(\S+)?\s*delivered[.!\s]*$`)
	pickedUpRe  = regexp.MustCompile(`(?i)^(?:picked\s*up|loaded|rolling)(?:\s+(\S+))?[.!\s]*$`)
	atPickupRe  = regexp.MustCompile(`(?i)^(?:at\s+(?:the\s+)?pickup|at\s+shipper|arrived(?:\s+at\s+pickup)?)[.!\s]*$`)
	yesRe       = regexp.MustCompile(`(?i)^(?:yes|y|yep|yeah|ok|okay|confirm)[.!\s]*$`)
	noRe        = regexp.MustCompile(`(?i)^(?:no|n|nope|cancel|discard)[.!\s]*$`)
)

// Intercepts holds the dependencies of the pre-model fast paths.
type Intercepts struct {
	docs *docs.Service
}

// NewIntercepts creates the fast-path matcher. The docs service is
// optional; without it the yes/no path is disabled.
func NewIntercepts(docsSvc *docs.Service) *Intercepts {
	return &Intercepts{docs: docsSvc}
}

// Try matches text against the fast-path patterns and executes the match.
// It returns the reply and whether the message was fully handled. Memory
// is mutated in place; the caller persists it.
func (i *Intercepts) Try(ctx context.Context, exec *tools.Executor, mem *memory.ContextMemory, driverID, text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	// A pending document confirmation owns the next yes/no reply.
	if mem.PendingDocumentID != "" {
		if yesRe.MatchString(text) {
			return i.confirmDocument(ctx, exec, mem)
		}
		if noRe.MatchString(text) {
			return i.rejectDocument(mem)
		}
	}

	if m := deliveredRe.FindStringSubmatch(text); m != nil {
		return i.transition(ctx, exec, mem, driverID, m[1], tools.ToolMarkDelivered,
			"%s is marked delivered. Send the POD when you have it.")
	}
	if m := pickedUpRe.FindStringSubmatch(text); m != nil {
		return i.transition(ctx, exec, mem, driverID, m[1], tools.ToolMarkInTransit,
			"Got it, %s is rolling. Drive safe.")
	}
	if atPickupRe.MatchString(text) {
		// Informational check-in; no state change until the load is on.
		return "Thanks for the update. Message me \"picked up\" once you're loaded.", true
	}

	return "", false
}

// transition resolves the load reference (explicit fragment, then the
// driver's active load, then conversation memory) and runs the tool. An
// unresolvable or failing call falls through to the model.
func (i *Intercepts) transition(ctx context.Context, exec *tools.Executor, mem *memory.ContextMemory, driverID, fragment, tool, replyFormat string) (string, bool) {
	ref := fragment
	if ref == "" && driverID != "" {
		current, err := exec.CurrentLoadReference(driverID)
		if err != nil {
			log.Printf("channels: intercept: current load: %v", err)
		} else {
			ref = current
		}
	}
	if ref == "" {
		ref = mem.LastLoadReference
	}
	if ref == "" {
		return "", false
	}

	input := fmt.Sprintf(`{"load_reference":%q}`, ref)
	res := exec.Execute(ctx, tool, []byte(input))
	if res.IsError {
		return "", false
	}
	res.Memory.Apply(mem)
	return fmt.Sprintf(replyFormat, res.Memory.LoadRef), true
}

func (i *Intercepts) confirmDocument(ctx context.Context, exec *tools.Executor, mem *memory.ContextMemory) (string, bool) {
	if i.docs == nil {
		return "", false
	}
	docID := mem.PendingDocumentID
	mem.PendingDocumentID = ""

	res, err := i.docs.Confirm(ctx, exec, docID)
	if err == docs.ErrNoPending {
		return "That document offer has expired. Send it again and I'll re-read it.", true
	}
	if err != nil {
		log.Printf("channels: intercept: confirm document %s: %v", docID, err)
		return "Something went wrong saving that load. Please try again.", true
	}
	if res.IsError {
		return "I couldn't create that load from the document. Please enter it manually.", true
	}
	res.Memory.Apply(mem)
	return fmt.Sprintf("Done. Created load %s from the rate confirmation.", res.Memory.LoadRef), true
}

func (i *Intercepts) rejectDocument(mem *memory.ContextMemory) (string, bool) {
	if i.docs == nil {
		return "", false
	}
	docID := mem.PendingDocumentID
	mem.PendingDocumentID = ""

	if err := i.docs.Reject(docID); err != nil && err != docs.ErrNoPending {
		log.Printf("channels: intercept: reject document %s: %v", docID, err)
	}
	return "Okay, discarded the document.", true
}
