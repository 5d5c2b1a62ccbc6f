//go:build !kinetdebug

package packet

// strictFraming turns length-field cross-checks into decode errors.
// Enable with -tags kinetdebug.
const strictFraming = false
