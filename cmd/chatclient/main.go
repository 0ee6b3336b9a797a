// chatclient 是在終端機中執行單一大樓聊天 session 的命令列工具。
package main

func main() {
	Execute()
}
