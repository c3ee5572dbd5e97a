// Command shoprank 是排序引擎的命令行入口：离线排序、搜索调试、规则校验与下发、
// 过滤条件校验、类目向量生成和埋点导出。
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
