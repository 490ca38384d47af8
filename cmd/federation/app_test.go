package main

import "testing"

func TestStripFragment(t *testing.T) {
	cases := map[string]string{
		"https://remote.example/u/alice#main-key": "https://remote.example/u/alice",
		"https://remote.example/u/alice":          "https://remote.example/u/alice",
		"https://remote.example/u/ali#ce#main-key": "https://remote.example/u/ali#ce",
	}
	for in, want := range cases {
		if got := stripFragment(in); got != want {
			t.Errorf("stripFragment(%q) = %q, want %q", in, got, want)
		}
	}
}
