//go:build kinetdebug

package packet

const strictFraming = true
