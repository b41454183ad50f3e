package main

// Version is stamped at release time and reported by agent.version.
const Version = "0.3.1"
