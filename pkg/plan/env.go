package plan

import "runtime"

// archNames maps GOARCH to target_arch spelling
var archNames = map[string]string{
	"amd64":    "x86_64",
	"386":      "x86",
	"arm64":    "aarch64",
	"arm":      "arm",
	"riscv64":  "riscv64",
	"loong64":  "loongarch64",
	"ppc64le":  "powerpc64",
	"ppc64":    "powerpc64",
	"s390x":    "s390x",
	"mips64le": "mips64",
	"wasm":     "wasm32",
}

// osNames maps GOOS to target_os spelling where they differ
var osNames = map[string]string{
	"darwin": "macos",
}

// HostArch returns the running architecture in target_arch spelling
func HostArch() string {
	return ArchName(runtime.GOARCH)
}

// HostOS returns the running OS in target_os spelling
func HostOS() string {
	if name, ok := osNames[runtime.GOOS]; ok {
		return name
	}
	return runtime.GOOS
}

// ArchName translates a GOARCH value; unknown values are returned unchanged
func ArchName(goarch string) string {
	if name, ok := archNames[goarch]; ok {
		return name
	}
	return goarch
}

// HostEnv builds an Env for the running machine
func HostEnv(outDir, manifestDir string) Env {
	return Env{
		OutDir:      outDir,
		ManifestDir: manifestDir,
		Arch:        HostArch(),
		OS:          HostOS(),
	}
}
