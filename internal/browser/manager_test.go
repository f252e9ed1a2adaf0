package browser

import (
	"context"
	"errors"
	"testing"
)

func TestManager_ClosedBeforeStart(t *testing.T) {
	m := NewManager(Config{ResourceBlocking: []string{"fonts"}})
	if m.cfg.XvfbDisplay != ":99" || m.cfg.Logger == nil {
		t.Errorf("defaults not applied: %+v", m.cfg)
	}
	if !m.blocker["font"] {
		t.Errorf("blocker = %v", m.blocker)
	}
	if m.Browser() != nil {
		t.Error("browser before Start")
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close = %v, want ErrClosed", err)
	}
}

func TestOpenTab_NoBrowser(t *testing.T) {
	if _, err := OpenTab(context.Background(), NewManager(Config{}), "https://shop.test/", ""); err == nil {
		t.Fatal("OpenTab without a started browser succeeded")
	}
}
