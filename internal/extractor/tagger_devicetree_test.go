package extractor

import "testing"

func TestDeviceTreeTaggerNodeLabel(t *testing.T) {
	src := []byte("/ {\n\tuart0: serial@1000 {\n\t\tstatus = \"okay\";\n\t};\n};\n")
	tagger := newDeviceTreeTagger()
	defs, err := tagger.Tag(src)
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if len(defs) != 1 || defs[0].Ident != "uart0" || defs[0].Line != 2 {
		t.Fatalf("Tag() = %+v, want single uart0 def @2", defs)
	}
}
