package response

import "testing"

func TestSafeFilename(t *testing.T) {
	cases := map[string]string{
		"":                "NA",
		" report.pdf ":    "report.pdf",
		`a/b\c:d*e?"<>|f`: "a_b_c_d_e_____f",
	}
	for in, want := range cases {
		if got := SafeFilename(in); got != want {
			t.Fatalf("SafeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFileDisposition(t *testing.T) {
	got := File{Name: "my report.pdf"}.Disposition()
	if got != `attachment; filename="my_report.pdf"` {
		t.Fatalf("unexpected disposition %q", got)
	}
}
