package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

var conf *Conf

type Conf struct {
	App struct {
		Version string `toml:"version"`
		Title   string `toml:"title"`
	} `toml:"app"`
	Output struct {
		LogDir         string `toml:"logDir"`
		OutputTerminal bool   `toml:"outputTerminal"`
	} `toml:"output"`
	Serve struct {
		Directory    string   `toml:"directory"`
		Port         int      `toml:"port"`
		AllowedHosts []string `toml:"allowedHosts"`
		ScanInterval int      `toml:"scanInterval"`
		Headers      []struct {
			Key   string `toml:"key"`
			Value string `toml:"value"`
		} `toml:"headers"`
	} `toml:"serve"`
	Pool struct {
		Size    int `toml:"size"`
		Timeout int `toml:"timeout"`
	} `toml:"pool"`
}

// InitConf 初始化配置
func InitConf(cfgFile string) {
	if cfgFile == "" {
		cfgFile = "conf.toml"
	}
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("config file(%s) not exist", cfgFile)
		os.Exit(1)
	}
	viper.SetConfigType("toml")
	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv() // read in environment variables that match
	err := viper.ReadInConfig()
	if err != nil {
		fmt.Printf("read config file(%s) error, details: %s", viper.ConfigFileUsed(), err)
	}
	// 设置默认值
	viper.SetDefault("app.version", "v 0.1.0")
	viper.SetDefault("app.title", "MapCloud TileServ")
	viper.SetDefault("output.outputTerminal", true)
	viper.SetDefault("serve.directory", "tiles")
	viper.SetDefault("serve.port", 8000)
	viper.SetDefault("serve.allowedHosts", []string{"*"})
	viper.SetDefault("serve.scanInterval", 0)
	viper.SetDefault("pool.size", 8)
	viper.SetDefault("pool.timeout", 5000)

	err = viper.Unmarshal(&conf)
	if err != nil {
		panic("配置文件解析失败")
	}
}
