//go:build windows

package process

import "golang.org/x/sys/windows"

// ansiCodepages maps Windows ANSI code page numbers to encoding labels.
var ansiCodepages = map[uint32]string{
	874:  "windows-874",
	932:  "shift_jis",
	936:  "gbk",
	949:  "euc-kr",
	950:  "big5",
	1250: "windows-1250",
	1251: "windows-1251",
	1252: "windows-1252",
	1253: "windows-1253",
	1254: "windows-1254",
	1255: "windows-1255",
	1256: "windows-1256",
	1257: "windows-1257",
	1258: "windows-1258",
}

func platformCodepage() string {
	if label, ok := ansiCodepages[windows.GetACP()]; ok {
		return label
	}
	return "windows-1252"
}
