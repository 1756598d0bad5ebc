package packet

// CalculateChecksum computes the RFC 1071 internet checksum. An odd trailing
// byte is treated as the high byte of a zero padded word.
func CalculateChecksum(b []byte) uint16 {
	var sum uint32
	l := len(b)
	if l&1 != 0 {
		l--
		sum += uint32(b[l]) << 8
	}
	for i := 0; i < l; i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}

// VerifyChecksum reports whether b, including its embedded checksum field, sums to zero.
func VerifyChecksum(b []byte) bool {
	return CalculateChecksum(b) == 0
}
