/* Receive two tone FSK data from a serial ADC board, sound card or recording */
package main

import (
	twrfsk "github.com/doismellburning/twrfsk/src"
)

func main() {
	twrfsk.RxMain()
}
