package audit

import (
	"debug/elf"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// minStringLength is the shortest ASCII run harvested from data sections.
const minStringLength = 4

// interestingKeywords filters imported symbols down to the ones that
// hint at file, network, or process activity. Substring match handles
// versioned names like "connect@@GLIBC_2.2.5".
var interestingKeywords = []string{
	"open", "openat", "fopen", "read", "write", "close",
	"socket", "connect", "send", "recv", "getaddrinfo",
	"fork", "vfork", "clone", "execve", "system", "popen",
	"ptrace", "ioctl", "mprotect", "dlopen",
	"setuid", "capset", "futex", "prctl",
}

// netSymbols covers libc socket entry points, common TLS front doors,
// and DNS helpers.
var netSymbols = []string{
	"socket", "socketpair", "bind", "connect", "listen",
	"accept", "accept4", "getsockname", "getpeername",
	"send", "sendto", "sendmsg", "sendmmsg",
	"recv", "recvfrom", "recvmsg", "recvmmsg",
	"setsockopt", "getsockopt", "shutdown",
	"__socket", "__connect", "__send", "__recv",
	"SSL_", "TLS_", "BIO_",
	"getaddrinfo", "getnameinfo", "gethostbyname", "gethostbyaddr",
}

// configPathRegex matches candidate config/data paths in harvested strings.
var configPathRegex = regexp.MustCompile(`(/(?:etc|var|usr|home)/[^\s"']+)`)

// AuditELF statically audits an ELF binary: hardening flags, imported
// symbols, needed libraries, and candidate config paths harvested from
// its data sections.
func AuditELF(path string) (*Report, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("not a valid ELF: %w", err)
	}
	defer f.Close()

	r := &Report{
		File:   path,
		Source: "elf",
		Arch:   f.Machine.String(),
		PIE:    f.Type == elf.ET_DYN,
		NX:     true, // no PT_GNU_STACK at all means a non-executable stack
	}

	for _, prog := range f.Progs {
		switch prog.Type {
		case elf.PT_GNU_STACK:
			r.NX = prog.Flags&elf.PF_X == 0
		case elf.PT_GNU_RELRO:
			r.RELRO = true
		}
	}
	r.BindNow = bindNow(f)

	if libs, err := f.ImportedLibraries(); err == nil {
		libSet := stringSet{}
		for _, lib := range libs {
			libSet.Add(lib)
		}
		r.SharedLibs = libSet.Sorted()
	}

	imports := stringSet{}
	if syms, err := f.ImportedSymbols(); err == nil {
		for _, sym := range syms {
			if isInterestingSymbol(sym.Name) {
				imports.Add(sym.Name)
			}
		}
	}
	r.Imports = imports.Sorted()
	r.NetworkIntent = hasNetIntent(r.Imports)

	paths := stringSet{}
	for _, s := range stringsFromSections(f, buf) {
		if m := configPathRegex.FindStringSubmatch(s); m != nil {
			paths.Add(m[1])
		}
	}
	r.ReadPaths = paths.Sorted()

	return r, nil
}

// bindNow checks DT_BIND_NOW plus the DF_BIND_NOW and DF_1_NOW flag bits.
func bindNow(f *elf.File) bool {
	if vals, err := f.DynValue(elf.DT_BIND_NOW); err == nil && len(vals) > 0 {
		return true
	}
	if vals, err := f.DynValue(elf.DT_FLAGS); err == nil {
		for _, v := range vals {
			if elf.DynFlag(v)&elf.DF_BIND_NOW != 0 {
				return true
			}
		}
	}
	if vals, err := f.DynValue(elf.DT_FLAGS_1); err == nil {
		for _, v := range vals {
			if elf.DynFlag1(v)&elf.DF_1_NOW != 0 {
				return true
			}
		}
	}
	return false
}

// stringsFromSections harvests ASCII strings from allocated,
// non-executable PROGBITS sections, falling back to the whole file when
// the section table looks bogus.
func stringsFromSections(f *elf.File, buf []byte) []string {
	var out []string
	any := false

	for _, sec := range f.Sections {
		isAlloc := sec.Flags&elf.SHF_ALLOC != 0
		isProg := sec.Type == elf.SHT_PROGBITS
		isExec := sec.Flags&elf.SHF_EXECINSTR != 0
		if !isAlloc || !isProg || isExec {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			continue
		}
		out = append(out, extractASCIIStrings(data, minStringLength)...)
		any = true
	}

	if any {
		return out
	}
	return extractASCIIStrings(buf, minStringLength)
}

// extractASCIIStrings returns printable runs of at least min bytes.
func extractASCIIStrings(buf []byte, min int) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() >= min {
			out = append(out, cur.String())
		}
		cur.Reset()
	}
	for _, b := range buf {
		if (b >= 0x20 && b <= 0x7E) || b == '\t' {
			cur.WriteByte(b)
		} else {
			flush()
		}
	}
	flush()
	return out
}

func isInterestingSymbol(name string) bool {
	for _, kw := range interestingKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func hasNetIntent(imports []string) bool {
	for _, sym := range imports {
		for _, net := range netSymbols {
			if strings.Contains(sym, net) {
				return true
			}
		}
	}
	return false
}
