package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for the CLI.
func PrintBanner() {
	p := termenv.ColorProfile()
	lines := []string{
		`                                  __ _               `,
		`  ___ __ _ _ ____   ____ _ ___  / _| | _____      __ `,
		` / __/ _' | '_ \ \ / / _' / __|| |_| |/ _ \ \ /\ / / `,
		`| (_| (_| | | | \ V / (_| \__ \|  _| | (_) \ V  V /  `,
		` \___\__,_|_| |_|\_/ \__,_|___/|_| |_|\___/ \_/\_/   `,
	}
	colors := []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9", "#f472b6"}

	fmt.Println()
	for i, line := range lines {
		fmt.Println(termenv.String(line).Foreground(p.Color(colors[i%len(colors)])))
	}
	fmt.Println()
}
