package parser

import "testing"

var testAllocators = map[string]bool{
	"malloc": true, "calloc": true, "strdup": true,
}

func findSites(t *testing.T, src string, window int) []AllocationSite {
	t.Helper()
	tokens := mustTokenize(t, src)
	return FindAllocationSites(src, tokens, testAllocators, window)
}

func TestFindAllocationSites(t *testing.T) {
	src := `void f(void) {
	char *p = malloc(10);
	char *q = calloc(1, 4);
	if (q == NULL) return;
	malloc(1);
}
`
	sites := findSites(t, src, 1)
	if len(sites) != 3 {
		t.Fatalf("got %d sites, want 3", len(sites))
	}

	if sites[0].Allocator != "malloc" || sites[0].Var != "p" || sites[0].Checked {
		t.Errorf("site 0: %+v, want unchecked malloc into p", sites[0])
	}
	if sites[1].Allocator != "calloc" || sites[1].Var != "q" || !sites[1].Checked {
		t.Errorf("site 1: %+v, want checked calloc into q", sites[1])
	}
	if sites[2].Allocator != "malloc" || sites[2].Var != "" || sites[2].Checked {
		t.Errorf("site 2: %+v, want unchecked target-less malloc", sites[2])
	}
}

func TestGuardForms(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		checked bool
	}{
		{"not operator", "void f(void){ char *p = malloc(1); if (!p) return; }", true},
		{"eq null", "void f(void){ char *p = malloc(1); if (p == NULL) return; }", true},
		{"null eq", "void f(void){ char *p = malloc(1); if (NULL == p) return; }", true},
		{"eq zero", "void f(void){ char *p = malloc(1); if (p == 0) return; }", true},
		{"eq nullptr", "void f(void){ char *p = malloc(1); if (p == nullptr) return; }", true},
		{"no guard", "void f(void){ char *p = malloc(1); use(p); }", false},
		{"guards other variable", "void f(void){ char *p = malloc(1); if (q == NULL) return; }", false},
		{"non-null comparison", "void f(void){ char *p = malloc(1); if (p == buf) return; }", false},
		{"guard uses p but tests nothing", "void f(void){ char *p = malloc(1); if (p) use(p); }", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sites := findSites(t, tt.src, 1)
			if len(sites) != 1 {
				t.Fatalf("got %d sites, want 1", len(sites))
			}
			if sites[0].Checked != tt.checked {
				t.Errorf("Checked = %v, want %v", sites[0].Checked, tt.checked)
			}
		})
	}
}

func TestGuardWindow(t *testing.T) {
	src := `void f(void) {
	char *p = malloc(1);
	log_alloc(p);
	if (p == NULL) return;
}
`
	sites := findSites(t, src, 1)
	if len(sites) != 1 || sites[0].Checked {
		t.Fatalf("window 1: expected one unchecked site, got %+v", sites)
	}

	sites = findSites(t, src, 2)
	if len(sites) != 1 || !sites[0].Checked {
		t.Fatalf("window 2: expected the guard to be found, got %+v", sites)
	}
}

func TestGuardScanStopsAtScopeEnd(t *testing.T) {
	src := `void f(void) {
	char *p = malloc(1);
}
void g(char *p) {
	if (p == NULL) return;
}
`
	sites := findSites(t, src, 3)
	if len(sites) != 1 {
		t.Fatalf("got %d sites, want 1", len(sites))
	}
	if sites[0].Checked {
		t.Error("guard in the next function must not cover the site")
	}
}

func TestAllocatorNameInOtherPosition(t *testing.T) {
	// An allocator name without a following call is not a site.
	src := "void f(void){ int malloc; malloc = 3; }"
	sites := findSites(t, src, 1)
	if len(sites) != 0 {
		t.Fatalf("got %d sites, want 0", len(sites))
	}
}
