package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"deshhindi/internal/wpm/model"
	"deshhindi/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// DefaultPassages is the built-in set used when no passages file is configured.
var DefaultPassages = []string{
	"भारत एक महान देश है। यहाँ की संस्कृति बहुत पुरानी है।",
	"शिक्षा मनुष्य के जीवन के लिए बहुत महत्वपूर्ण है।",
	"पेड़-पौधे हमारे पर्यावरण को शुद्ध रखते हैं। हमें पेड़ लगाने चाहिए।",
	"सफलता मेहनत करने वालों को ही मिलती है। कभी हार मत मानो।",
	"समय का सदुपयोग करना बहुत ज़रूरी है, क्योंकि बीता समय वापस नहीं आता।",
}

// Passages holds the test passages and optionally hot-reloads them from a
// YAML file. A file that fails to load leaves the previous set in place.
type Passages struct {
	path string

	mu   sync.RWMutex
	list []string
}

func NewPassages(path string) *Passages {
	return &Passages{path: path, list: normalizeAll(DefaultPassages)}
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(norm.NFC.String(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads the passages file. Without a configured file it is a no-op.
func (p *Passages) Load() error {
	if p.path == "" {
		return nil
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read passages %q: %w", p.path, err)
	}

	var f model.PassageFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse passages %q: %w", p.path, err)
	}
	list := normalizeAll(f.Passages)
	if len(list) == 0 {
		return fmt.Errorf("passages %q: no passages", p.path)
	}

	p.mu.Lock()
	p.list = list
	p.mu.Unlock()
	logger.Sugar.Infof("Loaded %d wpm passages from %s", len(list), p.path)
	return nil
}

func (p *Passages) All() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.list...)
}

// WatchAndReload reloads the file whenever it is written or replaced.
// It blocks until done is closed.
func (p *Passages) WatchAndReload(done <-chan struct{}) error {
	if p.path == "" {
		<-done
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so the directory is watched.
	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", dir, err)
	}
	target := filepath.Clean(p.path)

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := p.Load(); err != nil {
					logger.Sugar.Warnf("Keeping previous wpm passages: %v", err)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
