package main

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed content/portfolio.yaml
var defaultContent []byte

// Portfolio is everything the page and the assistant know about the owner.
type Portfolio struct {
	Owner     Owner            `yaml:"owner"`
	Nav       []Link           `yaml:"nav"`
	Socials   []Link           `yaml:"socials"`
	IconSlugs []string         `yaml:"icon_slugs"`
	HeroWords []string         `yaml:"hero_words"`
	Skills    []SkillGroup     `yaml:"skills"`
	Timeline  []TimelineEntry  `yaml:"timeline"`
	Projects  []Project        `yaml:"projects"`
	Contact   []ContactMethod  `yaml:"contact"`
	Assistant AssistantPersona `yaml:"assistant"`
}

type Owner struct {
	Name     string `yaml:"name"`
	Brand    string `yaml:"brand"`
	Headline string `yaml:"headline"`
	Tagline  string `yaml:"tagline"`
	Summary  string `yaml:"summary"`
	Location string `yaml:"location"`
}

type Link struct {
	Label string `yaml:"label"`
	Href  string `yaml:"href"`
	Icon  string `yaml:"icon"`
}

// SkillGroup is one tile of the skills bento grid. Span is "wide", "tall" or empty.
type SkillGroup struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Items       []string `yaml:"items"`
	Accent      string   `yaml:"accent"`
	Span        string   `yaml:"span"`
}

type TimelineEntry struct {
	Period       string   `yaml:"period"`
	Title        string   `yaml:"title"`
	Organization string   `yaml:"organization"`
	Bullets      []string `yaml:"bullets"`
	Note         string   `yaml:"note"`
}

type Project struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	Link        string `yaml:"link"`
}

type ContactMethod struct {
	Kind  string `yaml:"kind"`
	Title string `yaml:"title"`
	Value string `yaml:"value"`
	Link  string `yaml:"link"`
}

// AssistantPersona configures the chat widget. SystemPrompt overrides the
// built-in prompt when set.
type AssistantPersona struct {
	Name         string `yaml:"name"`
	Title        string `yaml:"title"`
	Greeting     string `yaml:"greeting"`
	Teaser       string `yaml:"teaser"`
	Placeholder  string `yaml:"placeholder"`
	Provider     string `yaml:"provider"`
	SystemPrompt string `yaml:"system_prompt"`
}

// ParseContent decodes and validates a portfolio document. Unknown keys are
// rejected so typos surface instead of silently rendering nothing.
func ParseContent(data []byte) (*Portfolio, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Portfolio
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Portfolio) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Owner.Name) == "" {
		errs = append(errs, errors.New("owner.name is required"))
	}
	for i, t := range p.Timeline {
		if strings.TrimSpace(t.Title) == "" {
			errs = append(errs, fmt.Errorf("timeline[%d].title is required", i))
		}
	}
	for i, pr := range p.Projects {
		if strings.TrimSpace(pr.Title) == "" {
			errs = append(errs, fmt.Errorf("projects[%d].title is required", i))
		}
	}
	for i, c := range p.Contact {
		if strings.TrimSpace(c.Link) == "" {
			errs = append(errs, fmt.Errorf("contact[%d].link is required", i))
		}
	}
	return errors.Join(errs...)
}

// ContentStore serves the current portfolio and swaps it on reload.
type ContentStore struct {
	mu      sync.RWMutex
	current *Portfolio
	path    string
	log     *zap.SugaredLogger
}

// NewContentStore loads content from path, or the embedded document when
// path is empty.
func NewContentStore(path string, log *zap.SugaredLogger) (*ContentStore, error) {
	s := &ContentStore{path: path, log: log}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ContentStore) Current() *Portfolio {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SystemPrompt returns the content override or the built-in prompt.
func (s *ContentStore) SystemPrompt() string {
	if p := s.Current(); p != nil && strings.TrimSpace(p.Assistant.SystemPrompt) != "" {
		return p.Assistant.SystemPrompt
	}
	return DefaultSystemPrompt
}

// Reload re-reads the content. On failure the previous content stays live.
func (s *ContentStore) Reload() error {
	data := defaultContent
	if s.path != "" {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return fmt.Errorf("read content file: %w", err)
		}
		data = b
	}

	p, err := ParseContent(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	return nil
}

// Watch reloads the content file whenever it changes until ctx is done.
// The parent directory is watched because editors usually replace the file.
func (s *ContentStore) Watch(ctx context.Context, debounce time.Duration) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", s.path, err)
	}
	s.log.Infow("watching content file", "path", s.path)

	target := filepath.Clean(s.path)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target || event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				if err := s.Reload(); err != nil {
					s.log.Errorw("content reload failed, keeping previous content", "error", err)
					return
				}
				s.log.Infow("content reloaded", "path", s.path)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			s.log.Warnw("content watcher error", "error", err)
		}
	}
}
