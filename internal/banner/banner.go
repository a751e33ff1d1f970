package banner

import (
	"lampbench/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
    __                         __                    __  
   / /   ____ _____ ___  ____ / /_  ___  ____  _____/ /_ 
  / /   / __ '/ __ '__ \/ __ \/ __ \/ _ \/ __ \/ ___/ __ \
 / /___/ /_/ / / / / / / /_/ / /_/ /  __/ / / / /__/ / / /
/_____/\__,_/_/ /_/ /_/ .___/_.___/\___/_/ /_/\___/_/ /_/ 
                     /_/                                  `

	return "\n" + style.Render(ascii) + "\n"
}
