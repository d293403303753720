package pinglog

import "regexp"

// Marker substrings recognised in captured ping output. The Windows markers
// are the Japanese-locale phrases printed by ping.exe.
const (
	unixHeaderMarker        = "PING"
	unixStatisticsMarker    = "statistics"
	unixTransmittedMarker   = "transmitted"
	windowsHeaderMarker     = "送信しています"
	windowsStatisticsMarker = "統計"
	windowsPacketsMarker    = "パケット数"
	windowsMinimumMarker    = "最小"
	windowsListSeparator    = "、"
)

// ErrorToken replaces the round-trip time of a probe line that could not be
// parsed.
const ErrorToken = "error"

var (
	// windowsHeaderRE captures the target address and the optional bracketed
	// name from "<addr> [<name>]に ping を送信しています ...".
	windowsHeaderRE = regexp.MustCompile(`(.+) (\[.+\])?に`)
	// windowsReplyRE captures the reply time, "時間 =14ms" or "時間 <1ms".
	windowsReplyRE = regexp.MustCompile(`時間 (<|=)([0-9]+)ms`)
	// unixReplyRE captures the reply time, "time=23.4 ms".
	unixReplyRE = regexp.MustCompile(`time=([0-9.]+) ms`)
)
