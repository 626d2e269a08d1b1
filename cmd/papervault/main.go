// Package main 启动应用程序
package main

import (
	"os"

	"github.com/yeisme/papervault/pkg/cmd"
)

//	@title			PaperVault API
//	@version		1.0
//	@description	PaperVault 是一个学术论文库服务，提供 PDF 上传、元数据检索、分页列表与删除等功能。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme
//	@contact.email	yefun2004@gmail.com.

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
