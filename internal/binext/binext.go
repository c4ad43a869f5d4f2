// Package binext classifies file names as binary by extension.
package binext

import (
	"path"
	"strings"
)

// Default lists the extensions treated as non-text content.
var Default = []string{
	"3dm", "3ds", "3g2", "3gp", "7z", "a", "aac", "adp", "afdesign", "afphoto", "afpub",
	"ai", "aif", "aiff", "alz", "ape", "apk", "appimage", "ar", "arj", "asf", "au", "avi",
	"baml", "bh", "bin", "bk", "bmp", "btif", "bz2", "bzip2", "cab", "caf", "cgm",
	"class", "cmx", "cpio", "cr2", "cur", "dat", "dcm", "deb", "dex", "djvu", "dll", "dmg",
	"dng", "doc", "docm", "docx", "dot", "dotm", "dra", "dsk", "dts", "dtshd", "dvb", "dwg",
	"dxf", "ecelp4800", "ecelp7470", "ecelp9600", "egg", "eol", "eot", "epub", "exe", "f4v",
	"fbs", "fh", "fla", "flac", "flatpak", "fli", "flv", "fpx", "fst", "fvt", "g3", "gh",
	"gif", "graffle", "gz", "gzip", "h261", "h263", "h264", "icns", "ico", "ief", "img",
	"ipa", "iso", "jar", "jpeg", "jpg", "jpgv", "jpm", "jxr", "key", "ktx", "lha", "lib",
	"lvp", "lz", "lzh", "lzma", "lzo", "m3u", "m4a", "m4v", "mar", "mdi", "mht", "mid",
	"midi", "mj2", "mka", "mkv", "mmr", "mng", "mobi", "mov", "movie", "mp3", "mp4", "mp4a",
	"mpeg", "mpg", "mpga", "mxu", "nef", "npx", "numbers", "nupkg", "o", "odp", "ods", "odt",
	"oga", "ogg", "ogv", "otf", "ott", "pages", "pbm", "pcx", "pdb", "pdf", "pea", "pgm",
	"pic", "png", "pnm", "pot", "potm", "potx", "ppa", "ppam", "ppm", "pps", "ppsm", "ppsx",
	"ppt", "pptm", "pptx", "psd", "pya", "pyc", "pyo", "pyv", "qt", "rar", "ras", "raw",
	"resources", "rgb", "rip", "riff", "rlc", "rmf", "rmvb", "rpm", "rtf", "rz", "s3m",
	"s7z", "scpt", "sgi", "shar", "snap", "sil", "sketch", "slk", "smv", "snk", "so", "stl",
	"suo", "sub", "swf", "tar", "tbz", "tbz2", "tga", "tgz", "thmx", "tif", "tiff", "tlz",
	"ttc", "ttf", "txz", "udf", "uvh", "uvi", "uvm", "uvp", "uvs", "uvu", "viv", "vob",
	"war", "wav", "wax", "wbmp", "wdp", "weba", "webm", "webp", "whl", "wim", "wm", "wma",
	"wmv", "wmx", "woff", "woff2", "wrm", "wvx", "xbm", "xif", "xla", "xlam", "xls", "xlsb",
	"xlsm", "xlsx", "xlt", "xltm", "xltx", "xm", "xmind", "xpi", "xpm", "xwd", "xz", "z",
	"zip", "zipx",
}

// Set is a case-insensitive set of binary extensions.
type Set struct {
	exts map[string]struct{}
}

// New returns a Set of the given extensions, with or without leading dots.
// A nil slice selects Default.
func New(exts []string) *Set {
	if exts == nil {
		exts = Default
	}
	s := &Set{exts: make(map[string]struct{}, len(exts))}
	for _, ext := range exts {
		s.exts[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return s
}

// IsBinary reports whether name ends in one of the set's extensions.
func (s *Set) IsBinary(name string) bool {
	ext := path.Ext(name)
	if ext == "" {
		return false
	}
	_, ok := s.exts[strings.ToLower(ext[1:])]
	return ok
}
