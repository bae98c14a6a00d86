package log

import "strconv"

// FormatLogfmtInt64 formats n with thousands separators, the way the
// terminal handler renders large counters (orphan byte totals, sequence
// numbers) so operators can read them at a glance.
func FormatLogfmtInt64(n int64) string {
	if n < 0 {
		return "-" + FormatLogfmtUint64(uint64(-n))
	}
	return FormatLogfmtUint64(uint64(n))
}

// FormatLogfmtUint64 formats n with thousands separators once it has more
// than five digits; shorter numbers are returned unchanged.
func FormatLogfmtUint64(n uint64) string {
	in := strconv.FormatUint(n, 10)
	if len(in) <= 5 {
		return in
	}
	var out []byte
	lead := len(in) % 3
	if lead == 0 {
		lead = 3
	}
	out = append(out, in[:lead]...)
	for i := lead; i < len(in); i += 3 {
		out = append(out, ',')
		out = append(out, in[i:i+3]...)
	}
	return string(out)
}
