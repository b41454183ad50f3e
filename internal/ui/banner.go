package ui

import "fmt"

func PrintBanner(onlyBanner ...bool) {
	banner := `
    ███╗   ██╗ ██████╗ ██████╗ ███████╗███████╗ ██████╗ ██████╗  ██████╗ ███████╗
    ████╗  ██║██╔═══██╗██╔══██╗██╔════╝██╔════╝██╔═══██╗██╔══██╗██╔════╝ ██╔════╝
    ██╔██╗ ██║██║   ██║██║  ██║█████╗  █████╗  ██║   ██║██████╔╝██║  ███╗█████╗
    ██║╚██╗██║██║   ██║██║  ██║██╔══╝  ██╔══╝  ██║   ██║██╔══██╗██║   ██║██╔══╝
    ██║ ╚████║╚██████╔╝██████╔╝███████╗██║     ╚██████╔╝██║  ██║╚██████╔╝███████╗
    ╚═╝  ╚═══╝ ╚═════╝ ╚═════╝ ╚══════╝╚═╝      ╚═════╝ ╚═╝  ╚═╝ ╚═════╝ ╚══════╝
    `
	onlyBannerValue := false
	if len(onlyBanner) > 0 {
		onlyBannerValue = onlyBanner[0]
	}

	if !onlyBannerValue {
		usage := `
        Usage:
            nodeforge prepare --config=<path>

        Options:
            --config        Path to configuration file (default: ./config.json)

        Examples:
            nodeforge prepare --config=./my-config.json
            nodeforge status --server srv-1
        `
		fmt.Printf("\033[1;36m%s\033[0m\n%s", banner, usage)
		return
	}

	fmt.Printf("\033[1;36m%s\033[0m\n", banner)
}
