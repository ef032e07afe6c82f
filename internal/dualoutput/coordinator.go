package dualoutput

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"genstudio/internal/event"
	"genstudio/internal/feature"
	"genstudio/internal/transport"
)

// Combination is a user-selected output type.
type Combination string

const (
	Article      Combination = "article"
	Presentation Combination = "presentation"
	Single       Combination = "single"
)

func ParseCombination(s string) (Combination, error) {
	switch c := Combination(strings.ToLower(strings.TrimSpace(s))); c {
	case Article, Presentation, Single:
		return c, nil
	case "":
		return Single, nil
	default:
		return "", fmt.Errorf("unknown output combination %q", s)
	}
}

// Formats returns the primary and secondary output formats. Secondary is
// empty for Single, where the primary keeps the request's own format.
func (c Combination) Formats() (primary, secondary string) {
	switch c {
	case Article:
		return feature.FormatPDF, feature.FormatMarkdown
	case Presentation:
		return feature.FormatPPTX, feature.FormatPDF
	}
	return "", ""
}

// SecondarySlot is the companion artifact. Its lifecycle is independent of
// the primary run.
type SecondarySlot struct {
	Format          string
	PDFBase64       string
	MarkdownContent string
	DownloadURL     string
	IsGenerating    bool
	Err             string
}

// View is the merged render state of both generations.
type View struct {
	Combination Combination
	Primary     feature.DocumentSnapshot
	Secondary   SecondarySlot
}

type Coordinator struct {
	primary *feature.Document
	caller  transport.Caller
	logger  *zap.Logger

	mu        sync.Mutex
	combo     Combination
	runID     uint64
	cancel    context.CancelFunc
	secondary SecondarySlot

	notifyMu sync.Mutex
	changed  chan struct{}
}

// New builds a coordinator. caller is used for the secondary stream only;
// the primary goes through the document hook and its own caller.
func New(primary *feature.Document, caller transport.Caller, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		primary: primary,
		caller:  caller,
		logger:  logger.Named("dualoutput"),
		combo:   Single,
		changed: make(chan struct{}),
	}
	primary.OnChange(c.notify)
	return c
}

// Generate starts the primary and, for combined outputs, the secondary
// generation concurrently and returns once both have settled.
func (c *Coordinator) Generate(ctx context.Context, combo Combination, req feature.DocumentRequest, creds transport.Credentials) View {
	if ctx == nil {
		ctx = context.Background()
	}
	primaryFormat, secondaryFormat := combo.Formats()
	if primaryFormat != "" {
		req = req.WithFormat(primaryFormat)
	}

	c.mu.Lock()
	c.abandonLocked()
	c.combo = combo
	id := c.runID
	var secCtx context.Context
	launch := secondaryFormat != "" && req.Validate() == nil
	if launch {
		var cancel context.CancelFunc
		secCtx, cancel = context.WithCancel(ctx)
		c.cancel = cancel
		c.secondary = SecondarySlot{Format: secondaryFormat, IsGenerating: true}
	}
	c.notify()
	c.mu.Unlock()

	var wg sync.WaitGroup
	if launch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.runSecondary(secCtx, id, req.WithFormat(secondaryFormat), creds)
		}()
	}
	c.primary.Generate(ctx, req, creds)
	wg.Wait()
	return c.Snapshot()
}

func (c *Coordinator) runSecondary(ctx context.Context, id uint64, req feature.DocumentRequest, creds transport.Credentials) {
	runID := uuid.NewString()
	log := c.logger.With(zap.String("run_id", runID), zap.String("format", req.OutputFormat))
	log.Info("secondary generation started")

	err := transport.Stream(ctx, c.caller, transport.Call{
		RunID:       runID,
		Endpoint:    feature.DocumentEndpoint,
		Body:        req,
		Credentials: creds,
	}, event.DecodeDocument, func(ev event.DocumentEvent) {
		res, fail, ok := feature.DocumentOutcome(ev)
		if !ok {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if id != c.runID || !c.secondary.IsGenerating {
			return
		}
		c.secondary.IsGenerating = false
		if fail != nil {
			c.secondary.Err = fail.Message
		} else {
			c.secondary.PDFBase64 = res.PDFBase64
			c.secondary.MarkdownContent = res.MarkdownContent
			c.secondary.DownloadURL = res.DownloadURL
		}
		c.notify()
	}, log)

	c.mu.Lock()
	defer c.mu.Unlock()
	if id != c.runID {
		log.Debug("discarding superseded secondary run")
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if !c.secondary.IsGenerating {
		if c.secondary.Err != "" {
			log.Warn("secondary generation failed", zap.String("error", c.secondary.Err))
		} else {
			log.Info("secondary generation complete")
		}
		return
	}
	c.secondary.IsGenerating = false
	if err != nil {
		c.secondary.Err = err.Error()
	} else {
		c.secondary.Err = "stream ended before a result was produced"
	}
	log.Warn("secondary generation failed", zap.String("error", c.secondary.Err))
	c.notify()
}

// Reset clears both sides and abandons any in-flight secondary stream.
func (c *Coordinator) Reset() {
	c.primary.Reset()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abandonLocked()
	c.combo = Single
	c.notify()
}

func (c *Coordinator) abandonLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.runID++
	c.secondary = SecondarySlot{}
}

func (c *Coordinator) Snapshot() View {
	c.mu.Lock()
	v := View{Combination: c.combo, Secondary: c.secondary}
	c.mu.Unlock()
	v.Primary = c.primary.Snapshot()
	return v
}

// Changed returns a channel closed on the next change of either side.
func (c *Coordinator) Changed() <-chan struct{} {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	return c.changed
}

// notify is also called by the primary hook with its own lock held, so it
// only takes notifyMu.
func (c *Coordinator) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	close(c.changed)
	c.changed = make(chan struct{})
}
