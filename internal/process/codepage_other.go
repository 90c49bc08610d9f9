//go:build !windows

package process

// platformCodepage has no system source outside Windows; GBK is the
// codepage the encoder tools most often emit when not UTF-8.
func platformCodepage() string {
	return "gbk"
}
