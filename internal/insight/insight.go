// Package insight runs the analyst chat: questions go to the language model
// with the current schema as context, and SQL in the reply is executed.
package insight

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/pith/internal/ai"
	"github.com/leapstack-labs/pith/internal/query"
)

// ErrNotReady is returned when no model is ready to answer.
var ErrNotReady = errors.New("AI model is not ready")

// Message is one chat transcript entry. Assistant messages carry the result
// of any SQL they contained.
type Message struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	SQL       string         `json:"sql,omitempty"`
	Data      []query.Record `json:"data,omitempty"`
	Columns   []string       `json:"columns,omitempty"`
	Elapsed   time.Duration  `json:"-"`
	ElapsedMS float64        `json:"executionTime,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Model generates replies.
type Model interface {
	Status() ai.Status
	Generate(ctx context.Context, prompt, schemaContext string, onUpdate func(string)) (string, error)
}

// Runner executes SQL.
type Runner interface {
	Run(ctx context.Context, q any) (*query.Result, error)
}

// SchemaSource renders schema context for the prompt.
type SchemaSource interface {
	Context(ctx context.Context) (string, error)
}

// Config configures a Session.
type Config struct {
	Model  Model
	Runner Runner
	Schema SchemaSource
	Logger *slog.Logger
}

// Session is one chat transcript.
type Session struct {
	model  Model
	runner Runner
	schema SchemaSource
	logger *slog.Logger

	mu       sync.Mutex
	messages []Message
}

// NewSession creates a Session. When the model reports model switches the
// transcript is cleared on every switch.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Session{model: cfg.Model, runner: cfg.Runner, schema: cfg.Schema, logger: logger}
	if n, ok := cfg.Model.(interface{ OnModelChange(func(old, new string)) }); ok {
		n.OnModelChange(func(_, _ string) { s.Reset() })
	}
	return s
}

var sqlBlock = regexp.MustCompile("```sql\\s*([\\s\\S]*?)\\s*```")

// ExtractSQL returns the first fenced sql block of text.
func ExtractSQL(text string) (string, bool) {
	m := sqlBlock.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	sql := strings.TrimSpace(m[1])
	return sql, sql != ""
}

// Ask sends question to the model. onUpdate, when set, receives the
// assistant message after every streamed chunk and once more after any SQL
// has run. SQL execution failures are logged and leave the reply as is.
func (s *Session) Ask(ctx context.Context, question string, onUpdate func(Message)) (*Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is empty")
	}
	if s.model == nil || s.model.Status().State != ai.StateReady {
		return nil, ErrNotReady
	}

	schemaContext := ""
	if s.schema != nil {
		c, err := s.schema.Context(ctx)
		if err != nil {
			s.logger.Error("failed to load schema context", "error", err)
		} else {
			schemaContext = c
		}
	}

	s.append(Message{ID: uuid.NewString(), Role: ai.RoleUser, Content: question, CreatedAt: time.Now()})
	reply := Message{ID: uuid.NewString(), Role: ai.RoleAssistant, CreatedAt: time.Now()}
	idx := s.append(reply)

	text, err := s.model.Generate(ctx, question, schemaContext, func(cumulative string) {
		reply.Content = cumulative
		s.set(idx, reply)
		if onUpdate != nil {
			onUpdate(reply)
		}
	})
	reply.Content = text
	s.set(idx, reply)
	if err != nil {
		return &reply, err
	}

	if sql, ok := ExtractSQL(text); ok && s.runner != nil {
		s.execute(ctx, sql, &reply)
		s.set(idx, reply)
		if onUpdate != nil {
			onUpdate(reply)
		}
	}
	return &reply, nil
}

func (s *Session) execute(ctx context.Context, sql string, msg *Message) {
	start := time.Now()
	res, err := s.runner.Run(ctx, sql)
	if err != nil {
		s.logger.Error("auto-execution failed", "sql", sql, "error", err)
		return
	}
	msg.SQL = sql
	msg.Data = res.Rows
	msg.Columns = res.Columns
	msg.Elapsed = time.Since(start)
	msg.ElapsedMS = float64(msg.Elapsed.Microseconds()) / 1000
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Reset clears the transcript.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

func (s *Session) append(m Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return len(s.messages) - 1
}

// set replaces entry i unless the transcript was reset meanwhile.
func (s *Session) set(i int, m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < len(s.messages) && s.messages[i].ID == m.ID {
		s.messages[i] = m
	}
}
