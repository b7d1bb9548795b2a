package main

import "github.com/qrave1/StudyRoom/cmd"

func main() {
	cmd.Execute()
}
