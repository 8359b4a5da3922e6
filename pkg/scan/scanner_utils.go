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

package scan

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPrefix is the /24 scanned when none is given.
const DefaultPrefix = "192.168.1"

// NormalizePrefix reduces "a.b.c", "a.b.c.d" or "a.b.c.0/24" to "a.b.c".
// An empty prefix yields DefaultPrefix.
func NormalizePrefix(prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return DefaultPrefix, nil
	}

	if strings.Contains(prefix, "/") {
		ip, ipnet, err := net.ParseCIDR(prefix)
		if err != nil || ip.To4() == nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
		}

		if ones, _ := ipnet.Mask.Size(); ones != 24 {
			return "", fmt.Errorf("%w: %q is not a /24", ErrInvalidPrefix, prefix)
		}

		prefix = ipnet.IP.To4().String()
	}

	octets := strings.Split(prefix, ".")
	if len(octets) != 3 && len(octets) != 4 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}

	for _, o := range octets {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 || n > 255 || o != strconv.Itoa(n) {
			return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
		}
	}

	return strings.Join(octets[:3], "."), nil
}

// Hosts returns the usable addresses of a normalized prefix, .1 through .254.
func Hosts(prefix string) ([]string, error) {
	return ExpandCIDR(prefix + ".0/24")
}

// ExpandCIDR expands a CIDR notation into a slice of IP addresses.
// Skips network and broadcast addresses for non-/32 networks.
func ExpandCIDR(cidr string) ([]string, error) {
	baseIP, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}

	ones, _ := ipnet.Mask.Size()

	var ips []string

	for currentIP := baseIP.Mask(ipnet.Mask); ipnet.Contains(currentIP); incIP(currentIP) {
		if currentIP.To4() != nil && ones != 32 {
			if currentIP.Equal(ipnet.IP) || isBroadcast(currentIP, ipnet) {
				continue
			}
		}

		ips = append(ips, currentIP.String())
	}

	return ips, nil
}

// incIP increments an IP address in place.
func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			break
		}
	}
}

// isBroadcast checks if an IP is the broadcast address of a network.
func isBroadcast(ip net.IP, ipnet *net.IPNet) bool {
	broadcast := make(net.IP, len(ip))
	for i := range ip {
		broadcast[i] = ipnet.IP[i] | ^ipnet.Mask[i]
	}

	return ip.Equal(broadcast)
}
