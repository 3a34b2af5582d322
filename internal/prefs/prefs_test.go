// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prefs

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

// backends opens every implementation in a fresh temp dir.
func backends(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "prefs.db"))
			if err != nil {
				t.Fatalf("OpenSQLite() error = %v", err)
			}
			return s
		},
		"pebble": func() Store {
			s, err := OpenPebble(filepath.Join(t.TempDir(), "pebble"))
			if err != nil {
				t.Fatalf("OpenPebble() error = %v", err)
			}
			return s
		},
	}
}

func TestStore_CRUD(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()

			if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}
			if err := s.Set("b", []byte("2")); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := s.Set("a", []byte("1")); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := s.Set("a", []byte("one")); err != nil {
				t.Fatalf("Set() overwrite error = %v", err)
			}

			got, err := s.Get("a")
			if err != nil || string(got) != "one" {
				t.Errorf("Get(a) = %q, %v", got, err)
			}
			keys, err := s.Keys()
			if err != nil || !reflect.DeepEqual(keys, []string{"a", "b"}) {
				t.Errorf("Keys() = %v, %v", keys, err)
			}

			if err := s.Delete("a"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := s.Get("a"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get after Delete error = %v", err)
			}
			if err := s.Delete("never-set"); err != nil {
				t.Errorf("Delete(missing) error = %v", err)
			}
			if err := s.Set("", []byte("x")); err == nil {
				t.Error("Set with empty key succeeded")
			}
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			if err := s.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}
			if err := s.Close(); err != nil {
				t.Errorf("second Close() error = %v", err)
			}
			if _, err := s.Get("a"); !errors.Is(err, ErrClosed) {
				t.Errorf("Get after Close error = %v", err)
			}
			if err := s.Set("a", nil); !errors.Is(err, ErrClosed) {
				t.Errorf("Set after Close error = %v", err)
			}
		})
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	for _, spec := range []string{
		"sqlite:" + filepath.Join(dir, "prefs.db"),
		"pebble:" + filepath.Join(dir, "pebble"),
	} {
		s, err := Open(spec)
		if err != nil {
			t.Fatalf("Open(%q) error = %v", spec, err)
		}
		if err := s.Set("adkchat.store", []byte(`{"mode":"widget"}`)); err != nil {
			t.Fatal(err)
		}
		s.Close()

		s, err = Open(spec)
		if err != nil {
			t.Fatalf("reopen %q: %v", spec, err)
		}
		got, err := s.Get("adkchat.store")
		if err != nil || string(got) != `{"mode":"widget"}` {
			t.Errorf("%s: Get() = %q, %v", spec, got, err)
		}
		s.Close()
	}
}

func TestOpen_Specs(t *testing.T) {
	if s, err := Open("memory"); err != nil {
		t.Errorf("Open(memory) error = %v", err)
	} else {
		s.Close()
	}
	for _, bad := range []string{"", "sqlite", "sqlite:", "redis:localhost"} {
		if _, err := Open(bad); err == nil {
			t.Errorf("Open(%q) succeeded", bad)
		}
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	v := []byte("abc")
	s.Set("k", v)
	v[0] = 'x'
	got, _ := s.Get("k")
	if string(got) != "abc" {
		t.Errorf("stored value aliased caller slice: %q", got)
	}
}
