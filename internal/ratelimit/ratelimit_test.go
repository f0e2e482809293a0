package ratelimit

import (
	"testing"
	"time"
)

func TestAdmit_BurstThenDeny(t *testing.T) {
	l := New(1, 3)

	for i := 0; i < 3; i++ {
		if !l.Admit("1.2.3.4") {
			t.Fatalf("request %d within burst denied", i+1)
		}
	}
	if l.Admit("1.2.3.4") {
		t.Fatalf("request beyond burst admitted")
	}
}

func TestAdmit_CallersIndependent(t *testing.T) {
	l := New(1, 1)

	if !l.Admit("1.2.3.4") {
		t.Fatalf("first caller denied")
	}
	if l.Admit("1.2.3.4") {
		t.Fatalf("first caller's second request admitted")
	}
	if !l.Admit("5.6.7.8") {
		t.Fatalf("second caller denied by first caller's bucket")
	}
}

func TestSweep_DropsIdleCallers(t *testing.T) {
	l := New(1, 1)

	l.Admit("1.2.3.4")
	l.Admit("5.6.7.8")

	time.Sleep(10 * time.Millisecond)
	if n := l.Sweep(time.Millisecond); n != 2 {
		t.Fatalf("swept %d want 2", n)
	}

	// a swept caller starts with a fresh bucket
	if !l.Admit("1.2.3.4") {
		t.Fatalf("caller denied after sweep")
	}
}

func TestSweep_KeepsActiveCallers(t *testing.T) {
	l := New(1, 1)
	l.Admit("1.2.3.4")
	if n := l.Sweep(time.Minute); n != 0 {
		t.Fatalf("swept %d want 0", n)
	}
}
