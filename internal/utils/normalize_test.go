package utils

import (
	"reflect"
	"testing"
)

func TestFoldLower(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Rondo  Pívot", "rondo pivot"},
		{"  Transición Defensa-Ataque ", "transicion defensa-ataque"},
		{"Juego de Posición 4x4", "juego de posicion 4x4"},
		{"ÑANDÚ", "nandu"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FoldLower(tt.in); got != tt.want {
			t.Errorf("FoldLower(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSearchKeywords(t *testing.T) {
	got := SearchKeywords("Rondo Pívot", "rondo")
	want := []string{"rondo pivot", "rondo", "pivot"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SearchKeywords = %v, want %v", got, want)
	}
}

func TestTrimMax(t *testing.T) {
	if got := TrimMax("  camión ", 4); got != "cami" {
		t.Errorf("TrimMax = %q", got)
	}
	if got := TrimMax("ok", 10); got != "ok" {
		t.Errorf("TrimMax = %q", got)
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2026-10-19"); err != nil {
		t.Errorf("ParseDate valid: %v", err)
	}
	for _, bad := range []string{"19/10/2026", "2026-13-01", "2026-1-1", ""} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q) should fail", bad)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList("alevin, infantil;cadete ,, ")
	want := []string{"alevin", "infantil", "cadete"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitList = %v, want %v", got, want)
	}
}
