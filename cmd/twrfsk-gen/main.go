/* Generate a .WAV file of two tone FSK data */
package main

import (
	twrfsk "github.com/doismellburning/twrfsk/src"
)

func main() {
	twrfsk.GenMain()
}
