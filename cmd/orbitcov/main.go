// Command orbitcov serves satellite positions and ground coverage over HTTP
// and computes one-off coverage snapshots and propagation drift reports.
package main

func main() {
	Execute()
}
