package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"genstudio/internal/app"
	"genstudio/internal/canvas"
	"genstudio/internal/generation"
)

const canvasHelp = `type an answer, or one of:
  back     revisit the previous question
  report   generate the exploration report
  mindmap  generate a mind map of the canvas
  quit     leave the session`

func newCanvasCmd(root *rootOptions) *cobra.Command {
	var (
		src sourceFlags
		req canvas.StartRequest
	)
	cmd := &cobra.Command{
		Use:   "canvas",
		Short: "Explore an idea through a guided question loop",
		Long: `Start an idea canvas session. The backend asks one question at a time
and grows a decision tree from the answers.

` + canvasHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sources, err := src.build()
			if err != nil {
				return err
			}
			req.Sources = sources

			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			s := &canvasShell{
				app:    a,
				hook:   a.Canvas(),
				userID: root.userID,
				w:      out(cmd),
			}
			ctx := commandContext(cmd)
			session := s.hook.Start(ctx, req, a.Credentials(root.apiKey, root.userID))
			if session.State == canvas.StateError {
				return s.fail(session)
			}
			return s.loop(cmd, bufio.NewScanner(cmd.InOrStdin()), session)
		},
	}
	src.bind(cmd)
	cmd.Flags().StringVar(&req.Topic, "topic", "", "idea to explore")
	cmd.Flags().StringVar(&req.Language, "language", "", "question language")
	return cmd
}

type canvasShell struct {
	app    *app.App
	hook   *canvas.Hook
	userID string
	w      io.Writer
	runID  string
}

func (s *canvasShell) loop(cmd *cobra.Command, in *bufio.Scanner, session canvas.Session) error {
	ctx := commandContext(cmd)
	s.show(session)
	for {
		fmt.Fprint(s.w, "> ")
		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		var err error
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "help", "?":
			fmt.Fprintln(s.w, canvasHelp)
			continue
		case "back":
			session, err = s.hook.GoBack()
			if errors.Is(err, canvas.ErrInvalidState) {
				noteColor.Fprintln(s.w, "nothing to go back to")
				continue
			}
		case "report":
			s.report(cmd)
			continue
		case "mindmap":
			s.mindMap(cmd)
			continue
		default:
			session, err = s.hook.Answer(ctx, s.pick(session, line), s.userID)
			if errors.Is(err, canvas.ErrInvalidState) {
				noteColor.Fprintln(s.w, "no question is waiting for an answer")
				continue
			}
		}
		if err != nil {
			return err
		}
		if session.State == canvas.StateError {
			return s.fail(session)
		}
		s.show(session)
	}
}

// pick maps a 1-based option number onto the option text.
func (s *canvasShell) pick(session canvas.Session, line string) string {
	if session.CurrentQuestion == nil {
		return line
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(session.CurrentQuestion.Options) {
		return line
	}
	return session.CurrentQuestion.Options[n-1]
}

func (s *canvasShell) show(session canvas.Session) {
	if session.AnswerErr != "" {
		errColor.Fprintf(s.w, "answer not sent: %s (try again)\n", session.AnswerErr)
	}
	if session.Canvas.Root != nil {
		fmt.Fprintf(s.w, "canvas: %d nodes\n", session.Canvas.Root.Count())
	}
	if session.State == canvas.StateSuggestComplete {
		okColor.Fprintln(s.w, "the idea looks well explored. type report or mindmap, or keep answering")
		if session.Message != "" {
			fmt.Fprintln(s.w, session.Message)
		}
	}
	if q := session.CurrentQuestion; q != nil {
		fmt.Fprintf(s.w, "\nQ%d. %s\n", len(session.QuestionHistory)+1, q.Text)
		for i, o := range q.Options {
			fmt.Fprintf(s.w, "  %d) %s\n", i+1, o)
		}
	}
}

func (s *canvasShell) fail(session canvas.Session) error {
	if session.Err == nil {
		return fmt.Errorf("canvas session failed")
	}
	errColor.Fprintf(s.w, "canvas failed: %s\n", session.Err.Error())
	return fmt.Errorf("canvas failed: %w", *session.Err)
}

func (s *canvasShell) artifactRun() string {
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	return s.runID
}

func (s *canvasShell) report(cmd *cobra.Command) {
	ctx := commandContext(cmd)
	rep, err := s.hook.GenerateReport(ctx, s.userID, s.progress)
	if err != nil {
		s.sideFailed("report", err)
		return
	}
	okColor.Fprintln(s.w, "report ready")
	paths, err := s.app.Exporter().SaveReport(ctx, s.artifactRun(), rep)
	if err != nil {
		s.sideFailed("report", err)
		return
	}
	printSaved(s.w, s.artifactRun(), paths)
}

func (s *canvasShell) mindMap(cmd *cobra.Command) {
	ctx := commandContext(cmd)
	res, err := s.hook.GenerateMindMap(ctx, s.userID, s.progress)
	if err != nil {
		s.sideFailed("mind map", err)
		return
	}
	okColor.Fprintln(s.w, "mind map ready")
	printTree(s.w, res.Tree, 0)
	paths, err := s.app.Exporter().SaveMindMap(ctx, s.artifactRun(), res)
	if err != nil {
		s.sideFailed("mind map", err)
		return
	}
	printSaved(s.w, s.artifactRun(), paths)
}

func (s *canvasShell) progress(p generation.Progress) { printProgress(s.w, p) }

func (s *canvasShell) sideFailed(what string, err error) {
	if errors.Is(err, canvas.ErrNoSession) {
		noteColor.Fprintf(s.w, "%s needs an active session\n", what)
		return
	}
	errColor.Fprintf(s.w, "%s failed: %v\n", what, err)
}
