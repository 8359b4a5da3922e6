/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"fmt"
	"io"
)

// ShowHelp prints the usage message.
func ShowHelp(w io.Writer) {
	fmt.Fprint(w, `devmirror: keep Android devices connected and mirrored
Usage:
  devmirror [-config file] <command> [options] [arguments]

Commands:
  devices                          list known devices
  scan [-prefix p] [-port n]       probe a /24 for wireless devices
  connect <host[:port]>            connect to a wireless device
  disconnect <id>                  disconnect a wireless device
  reconnect [-all] [id]            reconnect one or every device
  launch [-profile name] <id>      mirror one device until interrupted
  launch-all [-profile name]       mirror every device until interrupted
  stop <id>                        stop the mirror session for a device
  record [-out file] <id>          record one device until interrupted
  adb <id> <args...>               run a guarded adb command on a device
  config get [key]                 print the settings or one key
  config set <key> <value>         change one setting
  profile list                     list saved profiles
  profile save <name>              save the current mirror options
  profile delete <name>            delete a profile
  rename <id> <name>               set a device's display name
  remove <id>                      forget a device
  export <file>                    write the device registry to a file
  run                              keep devices connected until interrupted
  watch                            interactive dashboard
  version                          print the build version

Global options:
  -config string   settings file (default "scrcpy_config.json")
  -help            show this help message

Examples:
  devmirror scan -prefix 192.168.1
  devmirror connect 192.168.1.50
  devmirror launch -profile low-latency R58M123ABC
  devmirror config set reconnect.max_attempts 5
  devmirror adb R58M123ABC shell getprop ro.product.model
`)
}
